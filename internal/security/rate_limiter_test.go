package security

import (
	"testing"
	"time"

	"github.com/raaihank/trace-sentinel/internal/config"
)

func TestRateLimiter(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		rl := NewRateLimiter(config.RateLimitConfig{Enabled: false, RequestsPerMin: 1, Burst: 1})
		for i := 0; i < 10; i++ {
			if !rl.Allow("1.2.3.4") {
				t.Fatal("disabled limiter rejected a request")
			}
		}
		if rl.Clients() != 0 {
			t.Errorf("disabled limiter tracked %d clients", rl.Clients())
		}
	})

	t.Run("BurstThenReject", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 3})
		rl.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			if !rl.Allow("1.2.3.4") {
				t.Fatalf("request %d rejected within burst", i+1)
			}
		}
		if rl.Allow("1.2.3.4") {
			t.Error("request beyond burst allowed")
		}
		if !rl.Allow("5.6.7.8") {
			t.Error("other client should have its own bucket")
		}

		now = now.Add(time.Second)
		if !rl.Allow("1.2.3.4") {
			t.Error("token should refill after one second at 60/min")
		}
	})

	t.Run("CleanupOldClients", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60})
		rl.now = func() time.Time { return now }

		rl.Allow("old")
		now = now.Add(2 * time.Hour)
		rl.Allow("new")

		rl.CleanupOldClients(time.Hour)
		if rl.Clients() != 1 {
			t.Errorf("Clients() = %d, want 1", rl.Clients())
		}
	})
}
