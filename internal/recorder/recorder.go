// Package recorder counts where confidential data was found and
// periodically logs a summary of the locations.
package recorder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the time between two summaries
const DefaultInterval = time.Hour

// Key identifies one location of a finding
type Key struct {
	Finder    string
	Service   string
	Operation string
	Field     string
}

func (k Key) String() string {
	return k.Finder + ";" + k.Service + ";" + k.Operation + ";" + k.Field
}

// Recorder aggregates finding locations. Counters are created on first use
// and live for the life of the process; they are reset to zero each time
// a summary is emitted. Increments that land between reading a counter and
// resetting it may be lost.
type Recorder struct {
	counters sync.Map // Key -> *atomic.Int64
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastEmit atomic.Int64
}

// Option configures a Recorder
type Option func(*Recorder)

func WithInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates a recorder whose first summary is due one interval from now
func New(logger *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		interval: DefaultInterval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastEmit.Store(r.now().UnixNano())
	return r
}

// Add counts one finding and emits the summary if it is due
func (r *Recorder) Add(finder, service, operation, field string) {
	key := Key{Finder: finder, Service: service, Operation: operation, Field: field}
	counter, ok := r.counters.Load(key)
	if !ok {
		counter, _ = r.counters.LoadOrStore(key, new(atomic.Int64))
	}
	counter.(*atomic.Int64).Add(1)

	if r.due() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.due() {
			r.emit()
		}
	}
}

// Count returns the current count for a location
func (r *Recorder) Count(finder, service, operation, field string) int64 {
	counter, ok := r.counters.Load(Key{Finder: finder, Service: service, Operation: operation, Field: field})
	if !ok {
		return 0
	}
	return counter.(*atomic.Int64).Load()
}

// Flush emits the summary immediately, used on shutdown
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit()
}

// String renders every counter, including zero ones, in sorted order
func (r *Recorder) String() string {
	var entries []string
	r.counters.Range(func(k, v any) bool {
		entries = append(entries, fmt.Sprintf("%s=%d", k.(Key), v.(*atomic.Int64).Load()))
		return true
	})
	sort.Strings(entries)
	return "[" + strings.Join(entries, ", ") + "]"
}

func (r *Recorder) due() bool {
	return r.now().UnixNano()-r.lastEmit.Load() >= r.interval.Nanoseconds()
}

// emit must be called with mu held
func (r *Recorder) emit() {
	entries := r.drain()
	r.lastEmit.Store(r.now().UnixNano())
	if len(entries) == 0 {
		return
	}
	r.logger.Info("Confidential data locations", zap.Strings("locations", entries))
}

// drain returns the sorted non-zero counters and resets them
func (r *Recorder) drain() []string {
	var entries []string
	r.counters.Range(func(k, v any) bool {
		if n := v.(*atomic.Int64).Swap(0); n > 0 {
			entries = append(entries, fmt.Sprintf("%s=%d", k.(Key), n))
		}
		return true
	})
	sort.Strings(entries)
	return entries
}
