package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

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

func newTestRecorder(t *testing.T) (*Recorder, *clock, *observer.ObservedLogs) {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	core, logs := observer.New(zap.InfoLevel)
	return New(zap.New(core), WithInterval(time.Hour), WithClock(clk.Now)), clk, logs
}

func locations(t *testing.T, logs *observer.ObservedLogs) [][]string {
	t.Helper()
	var out [][]string
	for _, entry := range logs.FilterMessage("Confidential data locations").All() {
		var locs []string
		for _, v := range entry.ContextMap()["locations"].([]interface{}) {
			locs = append(locs, v.(string))
		}
		out = append(out, locs)
	}
	return out
}

func TestRecorderEmitsOncePerInterval(t *testing.T) {
	rec, clk, logs := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		rec.Add("Email", "checkout", "POST /pay", "user.email")
	}
	assert.Equal(t, int64(5), rec.Count("Email", "checkout", "POST /pay", "user.email"))
	assert.Empty(t, locations(t, logs), "nothing is due before the interval elapses")

	clk.Advance(time.Hour)
	rec.Add("Credit_Card", "billing", "charge", "card")

	emitted := locations(t, logs)
	require.Len(t, emitted, 1)
	assert.Equal(t, []string{
		"Credit_Card;billing;charge;card=1",
		"Email;checkout;POST /pay;user.email=5",
	}, emitted[0])

	rec.Add("Email", "checkout", "POST /pay", "user.email")
	assert.Equal(t, int64(1), rec.Count("Email", "checkout", "POST /pay", "user.email"))
	assert.Len(t, locations(t, logs), 1)
}

func TestRecorderConcurrentAdds(t *testing.T) {
	rec, clk, logs := newTestRecorder(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.Add("Phone_Number", "crm", "lookup", "phone")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), rec.Count("Phone_Number", "crm", "lookup", "phone"))

	clk.Advance(2 * time.Hour)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Add("Phone_Number", "crm", "lookup", "other")
		}()
	}
	wg.Wait()

	assert.Len(t, locations(t, logs), 1, "summary must be emitted exactly once")
}

func TestRecorderFlushAndString(t *testing.T) {
	rec, _, logs := newTestRecorder(t)

	rec.Add("b", "s", "o", "f")
	rec.Add("a", "s", "o", "f")
	rec.Add("a", "s", "o", "f")
	assert.Equal(t, "[a;s;o;f=2, b;s;o;f=1]", rec.String())

	rec.Flush()
	emitted := locations(t, logs)
	require.Len(t, emitted, 1)
	assert.Equal(t, []string{"a;s;o;f=2", "b;s;o;f=1"}, emitted[0])
	assert.Equal(t, "[a;s;o;f=0, b;s;o;f=0]", rec.String())

	rec.Flush()
	assert.Len(t, locations(t, logs), 1, "an empty summary is not logged")
}

func TestKeyString(t *testing.T) {
	key := Key{Finder: "Email", Service: "svc", Operation: "op", Field: "tag"}
	assert.Equal(t, "Email;svc;op;tag", key.String())
}
