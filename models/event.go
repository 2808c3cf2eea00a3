package models

import (
	"strings"
	"time"
)

// Event kinds delivered to the webhook endpoint. Anything else is accepted
// and ignored.
const (
	EventSessionStarted  = "call.session_started"
	EventParticipantLeft = "call.session_participant_left"
	EventSessionEnded    = "call.session_ended"
	EventTranscriptReady = "call.transcription_ready"
	EventRecordingReady  = "call.recording_ready"
	EventMessageNew      = "message.new"
)

// WebhookEvent is the envelope posted by the platform. The Type field
// discriminates the event kind; each kind fills only the fields it needs.
// Events are never persisted, only the message ID is kept for dedupe.
type WebhookEvent struct {
	Type              string         `json:"type"`
	CreatedAt         time.Time      `json:"created_at,omitempty"`
	CallCID           string         `json:"call_cid,omitempty"`
	CID               string         `json:"cid,omitempty"`
	Call              *EventCall     `json:"call,omitempty"`
	CallTranscription *EventArtifact `json:"call_transcription,omitempty"`
	CallRecording     *EventArtifact `json:"call_recording,omitempty"`
	Message           *EventMessage  `json:"message,omitempty"`
	User              *EventUser     `json:"user,omitempty"`
}

// EventCall carries the custom data attached to a call
type EventCall struct {
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// EventArtifact points at a generated transcript or recording
type EventArtifact struct {
	URL string `json:"url"`
}

// EventMessage is the chat message carried by a message.new event
type EventMessage struct {
	ID   string     `json:"id"`
	Text string     `json:"text"`
	User *EventUser `json:"user,omitempty"`
}

// EventUser identifies the user who triggered the event
type EventUser struct {
	ID string `json:"id"`
}

// SessionID extracts the session identifier from the event. Call and channel
// identifiers are composites of the form "<kind>:<session_id>"; the custom
// data field is the fallback for events that carry neither.
func (e *WebhookEvent) SessionID() string {
	for _, cid := range []string{e.CallCID, e.CID} {
		if _, id, ok := splitCID(cid); ok {
			return id
		}
	}
	if e.Call != nil {
		if v, ok := e.Call.Custom["session_id"].(string); ok {
			return v
		}
	}
	return ""
}

// Channel returns the chat channel type and id the event belongs to
func (e *WebhookEvent) Channel() (string, string) {
	if kind, id, ok := splitCID(e.CID); ok {
		return kind, id
	}
	return "", ""
}

// Author returns the identifier of the user who authored the event, preferring
// the message author over the top-level user
func (e *WebhookEvent) Author() string {
	if e.Message != nil && e.Message.User != nil {
		return e.Message.User.ID
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}

func splitCID(cid string) (kind, id string, ok bool) {
	parts := strings.SplitN(cid, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
