package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatSource is a retrieved passage offered as potential grounding for an
// assistant message. SourceNumber is the 1-based retrieval rank, unique within
// the message and stable for its lifetime. IsUsed is nil when attribution was
// unavailable for the message; UsageReason is set only when IsUsed is true.
type ChatSource struct {
	Id            uuid.UUID
	ChatMessageId uuid.UUID
	DocumentId    string
	DocumentName  string
	PageNumber    *int
	ChunkText     string
	Score         float64
	SourceNumber  int
	IsUsed        *bool
	UsageReason   *string
	CreatedAt     time.Time
}
