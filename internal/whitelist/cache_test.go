package whitelist

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	mu      sync.Mutex
	body    string
	err     error
	delay   time.Duration
	fetches atomic.Int32
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *fakeSource) set(body string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body, s.err = body, err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type refreshCounter struct {
	mu       sync.Mutex
	attempts int
	failures int
	entries  int
}

func (r *refreshCounter) ObserveRefresh(kind string, entries int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.entries = entries
	if err != nil {
		r.failures++
	}
}

func TestCacheRefreshesOnFirstUse(t *testing.T) {
	source := &fakeSource{body: "JSON;Email;user.email"}
	observed := &refreshCounter{}
	cache := NewCache(KindJSON, source, zap.NewNop(), WithObserver(observed))

	assert.Equal(t, 0, cache.Snapshot().Len())
	assert.True(t, cache.Contains("Email", "user.email"))
	assert.False(t, cache.Contains("Email", "user.name"))
	assert.Equal(t, int32(1), source.fetches.Load())
	assert.Equal(t, 1, observed.attempts)
	assert.Equal(t, 1, observed.entries)
}

func TestCacheHonoursTTL(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	source := &fakeSource{body: "JSON;Email;a"}
	cache := NewCache(KindJSON, source, zap.NewNop(), WithTTL(time.Hour), WithClock(clk.Now))

	require.True(t, cache.Contains("Email", "a"))

	source.set("JSON;Email;b", nil)
	clk.Advance(59 * time.Minute)
	assert.True(t, cache.Contains("Email", "a"), "fresh snapshot must be served")
	assert.Equal(t, int32(1), source.fetches.Load())

	clk.Advance(2 * time.Minute)
	assert.True(t, cache.Contains("Email", "b"))
	assert.False(t, cache.Contains("Email", "a"))
	assert.Equal(t, int32(2), source.fetches.Load())
}

func TestCacheFailureKeepsSnapshot(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	source := &fakeSource{body: "SPAN;Email;svc;op;tag"}
	core, logs := observer.New(zap.ErrorLevel)
	cache := NewCache(KindSpan, source, zap.New(core), WithTTL(time.Minute), WithClock(clk.Now))

	require.True(t, cache.Contains("Email", "svc", "op", "tag"))

	t.Run("FetchError", func(t *testing.T) {
		source.set("", errors.New("connection refused"))
		clk.Advance(2 * time.Minute)

		assert.True(t, cache.Contains("Email", "svc", "op", "tag"))
		assert.Equal(t, 1, logs.FilterMessage("Failed to refresh whitelist; keeping previous entries").Len())

		// the failed attempt still advanced the refresh time
		fetches := source.fetches.Load()
		assert.True(t, cache.Contains("Email", "svc", "op", "tag"))
		assert.Equal(t, fetches, source.fetches.Load())
	})

	t.Run("ShortLine", func(t *testing.T) {
		source.set("SPAN;Email;svc;op;other\nSPAN;Email;svc", nil)
		clk.Advance(2 * time.Minute)

		assert.True(t, cache.Contains("Email", "svc", "op", "tag"))
		assert.False(t, cache.Contains("Email", "svc", "op", "other"), "partial refresh must not be applied")
	})
}

func TestCacheSingleFlight(t *testing.T) {
	source := &fakeSource{body: "XML;Email;#document/a/#text", delay: 50 * time.Millisecond}
	cache := NewCache(KindXML, source, zap.NewNop())

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			cache.Contains("Email", "#document/a/#text")
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), source.fetches.Load())
	assert.True(t, cache.Contains("Email", "#document/a/#text"))
}

func TestCacheNilSource(t *testing.T) {
	cache := NewCache(KindSpan, nil, zap.NewNop())
	assert.False(t, cache.Contains("Email", "svc", "op", "tag"))
	assert.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, KindSpan, cache.Kind())
}

func TestCacheRefreshReturnsError(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	cache := NewCache(KindJSON, source, zap.NewNop())
	assert.Error(t, cache.Refresh(context.Background()))
}
