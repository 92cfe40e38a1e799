package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusCompleted MessageStatus = "completed"
	MessageStatusFailed    MessageStatus = "failed"
)

// TokenUsage is the generation provider's token accounting for one exchange.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatMessage is one persisted turn within a session. Messages are immutable
// once completed; a failed message records the pipeline stage it failed at.
type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	Status        MessageStatus
	FailureStage  string
	Mode          string
	Model         string
	Usage         TokenUsage
	// Raw attribution payload from generation, kept for audit. Empty when
	// attribution was unavailable.
	AttributionRaw []byte
	CreatedAt      time.Time

	// Loaded together with the message, ordered by SourceNumber.
	Sources []*ChatSource
}
