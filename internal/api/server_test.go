package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raaihank/trace-sentinel/internal/app"
	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/logger"
	"github.com/raaihank/trace-sentinel/internal/spanscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spanBody = `{"traceId":"t-1","spanId":"s-1","serviceName":"checkout","operationName":"pay",` +
	`"tags":[{"key":"user.email","vStr":"jane@example.com"},{"key":"component","vStr":"grpc"}]}`

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	if mutate != nil {
		mutate(cfg)
	}
	log := logger.NewNop()
	components, err := app.New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { components.Close() })
	return New(cfg, log, components)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(t, s, "GET", "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "none", info["whitelist_source"])
	assert.Contains(t, info["finders"], "Email")
	assert.Contains(t, info["finders"], "Phone_Number")
}

func TestScanJSON(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "POST", "/v1/json/scan",
		`{"rootElement":{"childMap":{"childKey":"jane@example.com"},"childArray":["jane@example.com"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalFindings)
	assert.Equal(t, []string{"rootElement.childMap.childKey", "rootElement.childArray.[0]"}, resp.Findings["Email"])
	assert.Equal(t, int64(1), s.totalScans.Load())
	assert.Equal(t, int64(2), s.totalDetections.Load())
}

func TestScanXML(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "POST", "/v1/xml/scan", `<user><mail>jane@example.com</mail></user>`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"#document/user/mail/#text"}, resp.Findings["Email"])
}

func TestScanAndMaskSpan(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "POST", "/v1/spans/scan", spanBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var scan ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, []string{"user.email"}, scan.Findings["Email"])
	require.Len(t, scan.Notifications, 1)
	assert.Contains(t, scan.Notifications[0], "service [checkout] operation [pay]")

	rec = do(t, s, "POST", "/v1/spans/mask", spanBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var mask struct {
		Findings map[string][]string `json:"findings"`
		Span     spanscan.Span       `json:"span"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mask))
	assert.Equal(t, spanscan.DefaultPlaceholder, mask.Span.Tags[0].VStr)
	assert.Equal(t, "grpc", mask.Span.Tags[1].VStr)

	rec = do(t, s, "GET", "/v1/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[Email;checkout;pay;user.email=1]", rec.Body.String())
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxBodyBytes = 64
	})

	rec := do(t, s, "POST", "/v1/spans/scan", `{"traceId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, "POST", "/v1/json/scan", `{"padding":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, s, "GET", "/v1/json/scan", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerMin = 1
		cfg.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, do(t, s, "POST", "/v1/json/scan", `{}`).Code)
	assert.Equal(t, http.StatusOK, do(t, s, "POST", "/v1/json/scan", `{}`).Code)
	rec := do(t, s, "POST", "/v1/json/scan", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/health", "").Code, "health is not rate limited")
}

func TestMetricsAndDashboard(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, "POST", "/v1/json/scan", `{"a":"jane@example.com"}`)

	rec := do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trace_sentinel_secret_detector_scan_requests_total{shape="json"} 1`)

	rec = do(t, s, "GET", "/dashboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trace-sentinel")
}

func TestLocationsDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Recorder.Enabled = false
	})
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/v1/locations", "").Code)
}
