package models

import "time"

// SessionStatus represents the current lifecycle status of a call session
type SessionStatus string

const (
	StatusScheduled  SessionStatus = "scheduled"
	StatusActive     SessionStatus = "active"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// Session represents one call session and its lifecycle state.
// Status moves scheduled -> active -> processing -> completed; cancelled is
// reachable from scheduled or active. The completed transition and the summary
// are written by the background summarize worker, not by this service.
type Session struct {
	SessionID     string        `json:"session_id" firestore:"session_id"`
	AgentID       string        `json:"agent_id" firestore:"agent_id"`
	Status        SessionStatus `json:"status" firestore:"status"`
	CallerNumber  string        `json:"caller_number,omitempty" firestore:"caller_number,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty" firestore:"started_at,omitempty"`
	EndedAt       *time.Time    `json:"ended_at,omitempty" firestore:"ended_at,omitempty"`
	TranscriptURL string        `json:"transcript_url,omitempty" firestore:"transcript_url,omitempty"`
	RecordingURL  string        `json:"recording_url,omitempty" firestore:"recording_url,omitempty"`
	Summary       string        `json:"summary,omitempty" firestore:"summary,omitempty"`
	CreatedAt     time.Time     `json:"created_at" firestore:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" firestore:"updated_at"`
}
