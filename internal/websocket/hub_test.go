package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func detectionEvent(source, service string, findings privacy.Findings) Event {
	return Event{
		Type:      EventTypeSecretDetection,
		Timestamp: time.Now(),
		Data: SecretDetectionEvent{
			Source:        source,
			Service:       service,
			Findings:      findings,
			TotalFindings: findings.Count(),
		},
	}
}

func TestShouldSendToClient(t *testing.T) {
	event := detectionEvent("span", "checkout", privacy.Findings{"Email": {"user.email"}})

	assert.True(t, shouldSendToClient(&Client{}, event), "no subscription receives everything")

	statusOnly := &Client{Subscription: &SubscriptionRequest{Events: []EventType{EventTypeSystemStatus}}}
	assert.False(t, shouldSendToClient(statusOnly, event))

	filtered := func(f EventFilter) *Client {
		return &Client{Subscription: &SubscriptionRequest{
			Events: []EventType{EventTypeSecretDetection},
			Filter: &f,
		}}
	}
	assert.True(t, shouldSendToClient(filtered(EventFilter{Finders: []string{"Email"}}), event))
	assert.False(t, shouldSendToClient(filtered(EventFilter{Finders: []string{"Credit_Card"}}), event))
	assert.True(t, shouldSendToClient(filtered(EventFilter{Services: []string{"checkout"}, Sources: []string{"span"}}), event))
	assert.False(t, shouldSendToClient(filtered(EventFilter{Services: []string{"billing"}}), event))
	assert.False(t, shouldSendToClient(filtered(EventFilter{Sources: []string{"xml"}}), event))
}

func TestShouldBroadcastEvent(t *testing.T) {
	h := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
	assert.True(t, h.shouldBroadcastEvent(EventTypeSecretDetection))
	assert.False(t, h.shouldBroadcastEvent(EventTypeSystemStatus))
	assert.False(t, h.shouldBroadcastEvent(EventTypeConnection))
	assert.False(t, h.shouldBroadcastEvent(EventTypePong))
}

func TestCheckOriginAndAuth(t *testing.T) {
	h := NewHub(&HubConfig{AllowedOrigins: []string{"https://ops.example.com"}, Username: "ops", Password: "s3cret"}, zap.NewNop())

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, h.checkOrigin(r), "requests without an origin are allowed")
	r.Header.Set("Origin", "https://ops.example.com")
	assert.True(t, h.checkOrigin(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.checkOrigin(r))

	assert.False(t, h.authorized(r))
	r.SetBasicAuth("ops", "wrong")
	assert.False(t, h.authorized(r))
	r.SetBasicAuth("ops", "s3cret")
	assert.True(t, h.authorized(r))

	rec := httptest.NewRecorder()
	h.HandleWebSocket(rec, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(&HubConfig{BroadcastDetections: true, ReadBufferSize: 1024, WriteBufferSize: 1024}, zap.NewNop())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetStats().ActiveConnections == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(detectionEvent("json", "", privacy.Findings{"Email": {"user.email"}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Type EventType `json:"type"`
		Data struct {
			Source   string              `json:"source"`
			Findings map[string][]string `json:"findings"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeSecretDetection, got.Type)
	assert.Equal(t, "json", got.Data.Source)
	assert.Equal(t, []string{"user.email"}, got.Data.Findings["Email"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	var pong Event
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, EventTypePong, pong.Type)

	cancel()
	require.Eventually(t, func() bool { return hub.GetStats().ActiveConnections == 0 }, 2*time.Second, 10*time.Millisecond)
}
