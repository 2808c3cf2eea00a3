package models

// Agent represents an AI persona that owns call sessions. Instructions are
// free text and are passed through verbatim, only ever concatenated with the
// policy wrapper, never rewritten.
type Agent struct {
	AgentID      string `json:"agent_id" firestore:"agent_id"`
	Name         string `json:"name" firestore:"name"`
	Instructions string `json:"instructions" firestore:"instructions"`
	AvatarURL    string `json:"avatar_url,omitempty" firestore:"avatar_url,omitempty"`
}

// Identity is the chat platform identity a reply is attributed to
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"image,omitempty"`
}

// ChatMessage is a single message from a chat channel's retained history
type ChatMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}
