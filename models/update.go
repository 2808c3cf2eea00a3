package models

import "time"

// StatusUpdate is sent to frontend clients when a session changes state
type StatusUpdate struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	AgentID   string        `json:"agent_id,omitempty"`
	Status    SessionStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// ConnectionResponse is sent when a client connects to the WebSocket feed
type ConnectionResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}
