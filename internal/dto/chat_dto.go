package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	// ChatSessionId is optional: when omitted the message goes to the caller's
	// active session, creating one if needed.
	ChatSessionId *uuid.UUID `json:"chat_session_id,omitempty"`
	Question      string     `json:"question" validate:"required,max=4000"`
	Mode          string     `json:"mode,omitempty" validate:"omitempty,oneof=strict balanced creative"`
	Model         string     `json:"model,omitempty"`
}

type ChatSourceDTO struct {
	SourceNumber int     `json:"source_number"`
	DocumentId   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   *int    `json:"page_number,omitempty"`
	ChunkText    string  `json:"chunk_text"`
	Score        float64 `json:"score"`
	IsUsed       *bool   `json:"is_used"`
	UsageReason  *string `json:"usage_reason,omitempty"`
}

type ChatMessageDTO struct {
	Id        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Status    string          `json:"status"`
	Mode      string          `json:"mode,omitempty"`
	Model     string          `json:"model,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Sources   []ChatSourceDTO `json:"sources,omitempty"`
}

type SendMessageResponse struct {
	ChatSessionId    uuid.UUID       `json:"chat_session_id"`
	ChatSessionTitle string          `json:"title"`
	Reply            *ChatMessageDTO `json:"reply"`
}

type ChatSessionResponse struct {
	Id           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type GetAllSessionsRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type GetAllSessionsResponse struct {
	Sessions []ChatSessionResponse `json:"sessions"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

type GetSessionMessagesRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type GetSessionMessagesResponse struct {
	ChatSessionId uuid.UUID        `json:"chat_session_id"`
	Messages      []ChatMessageDTO `json:"messages"`
	Total         int64            `json:"total"`
	Page          int              `json:"page"`
	PageSize      int              `json:"page_size"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=50"`
}

// PublishChatCompletedMessage is the internal bus payload emitted after an
// exchange persists. The consumer forwards it to NATS for downstream systems.
type PublishChatCompletedMessage struct {
	ChatSessionId  uuid.UUID `json:"chat_session_id"`
	MessageId      uuid.UUID `json:"message_id"`
	UserId         uuid.UUID `json:"user_id"`
	OrganizationId uuid.UUID `json:"organization_id"`
	SourceCount    int       `json:"source_count"`
}

// --- Rate Limit Error Types ---

// RateLimitError carries the denied window's details through the error chain
// so the handler can build the 429 payload.
type RateLimitError struct {
	Scope   string    `json:"scope"`
	Limit   int64     `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

func (e *RateLimitError) Error() string {
	return "message rate limit exceeded for " + e.Scope
}

// RateLimitData is the data payload for 429 responses.
type RateLimitData struct {
	Scope   string    `json:"scope"`
	Limit   int64     `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}
