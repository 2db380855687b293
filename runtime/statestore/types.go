package statestore

import "time"

// defaultTTLHours is the default TTL for turn history (24 hours).
const defaultTTLHours = 24

// Speaker identifies who produced a transcript.
type Speaker string

// Speakers.
const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "ai"
)

// Usage holds token counts reported by the service.
type Usage struct {
	PromptTokens   int `json:"promptTokens"`
	ResponseTokens int `json:"responseTokens"`
	TotalTokens    int `json:"totalTokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.ResponseTokens += other.ResponseTokens
	u.TotalTokens += other.TotalTokens
}

// TurnRecord is one finalized conversation turn.
type TurnRecord struct {
	SessionID   string    `json:"sessionId"`
	Index       int       `json:"index"`
	UserText    string    `json:"userText,omitempty"`
	ModelText   string    `json:"modelText,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
	// Usage is the session's cumulative usage when the turn completed.
	Usage Usage `json:"usage"`
}
