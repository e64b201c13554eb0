package whitelist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/trace-sentinel/internal/config"
	"go.uber.org/zap"
)

// RedisSource reads the whitelist text stored under a single Redis key
type RedisSource struct {
	client *redis.Client
	key    string
	url    string
}

// NewRedisSource connects to Redis and verifies the connection
func NewRedisSource(cfg config.RedisSource, logger *zap.Logger) (*RedisSource, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	source := &RedisSource{
		client: redis.NewClient(opts),
		key:    cfg.Key,
		url:    cfg.URL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := source.client.Ping(ctx).Result(); err != nil {
		source.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis whitelist source initialized",
		zap.String("redis_url", maskURL(cfg.URL)),
		zap.String("key", cfg.Key),
		zap.Int("pool_size", opts.PoolSize))

	return source, nil
}

func (s *RedisSource) Name() string {
	return maskURL(s.url) + "#" + s.key
}

func (s *RedisSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("whitelist key %q does not exist", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", s.key, err)
	}
	return io.NopCloser(strings.NewReader(value)), nil
}

// Close releases the connection pool
func (s *RedisSource) Close() error {
	return s.client.Close()
}
