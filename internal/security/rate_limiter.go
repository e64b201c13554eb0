package security

import (
	"sync"
	"time"

	"github.com/raaihank/trace-sentinel/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client for the scanning API
type RateLimiter struct {
	config  config.RateLimitConfig
	clients map[string]*client
	mu      sync.RWMutex
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}

	c := r.getClient(clientIP)
	now := r.now()

	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// getClient gets or creates the limiter for a client IP
func (r *RateLimiter) getClient(clientIP string) *client {
	r.mu.RLock()
	c, exists := r.clients[clientIP]
	r.mu.RUnlock()

	if exists {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if c, exists := r.clients[clientIP]; exists {
		return c
	}

	burst := r.config.Burst
	if burst <= 0 {
		burst = r.config.RequestsPerMin
	}

	c = &client{
		limiter:  rate.NewLimiter(rate.Limit(float64(r.config.RequestsPerMin)/60.0), burst),
		lastSeen: r.now(),
	}
	r.clients[clientIP] = c
	return c
}

// CleanupOldClients removes clients not seen within maxIdle
func (r *RateLimiter) CleanupOldClients(maxIdle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	for ip, c := range r.clients {
		c.mu.Lock()
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
		c.mu.Unlock()
	}
}

// StartCleanupRoutine removes idle clients every 30 minutes until stop is closed
func (r *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.CleanupOldClients(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}
