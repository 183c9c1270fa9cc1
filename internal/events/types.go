package events

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies a broadcast event category.
type EventType string

const (
	EventTypeMasking    EventType = "masking"
	EventTypePipeline   EventType = "pipeline"
	EventTypeSystem     EventType = "system"
	EventTypeConnection EventType = "connection"
)

// Event is the envelope sent to dashboard clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
	Data      interface{} `json:"data"`
}

// MaskingEvent summarizes one anonymization run. Original text never leaves
// the server through this channel.
type MaskingEvent struct {
	RequestID    string         `json:"requestId"`
	MappingCount int            `json:"mappingCount"`
	Categories   map[string]int `json:"categories"`
	ProcessingMS float64        `json:"processingMs"`
}

// PipelineEvent summarizes one transform pipeline run.
type PipelineEvent struct {
	RequestID    string   `json:"requestId"`
	Presets      []string `json:"presets"`
	Succeeded    bool     `json:"succeeded"`
	FailureKind  string   `json:"failureKind,omitempty"`
	ProcessingMS float64  `json:"processingMs"`
}

// ConnectionEvent reports client connects and disconnects.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"clientId"`
	ClientIP string `json:"clientIp"`
}

// Client is one connected WebSocket peer.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string
}
