package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/trace-sentinel/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeSecretDetection is sent when a scan finds confidential data
	EventTypeSecretDetection EventType = "secret_detection"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// SecretDetectionEvent describes where secrets were found in one document
type SecretDetectionEvent struct {
	RequestID     string           `json:"request_id,omitempty"`
	Source        string           `json:"source"` // span, json, xml, batch
	Service       string           `json:"service,omitempty"`
	Operation     string           `json:"operation,omitempty"`
	Findings      privacy.Findings `json:"findings"`
	TotalFindings int              `json:"total_findings"`
	Masked        bool             `json:"masked"`
	ProcessingMS  float64          `json:"processing_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string   `json:"status"`
	Uptime           string   `json:"uptime"`
	TotalScans       int64    `json:"total_scans"`
	TotalDetections  int64    `json:"total_detections"`
	Finders          []string `json:"finders"`
	WhitelistEntries int      `json:"whitelist_entries"`
	ConnectedClients int      `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows secret detection events
type EventFilter struct {
	Finders  []string `json:"finders,omitempty"`
	Services []string `json:"services,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
