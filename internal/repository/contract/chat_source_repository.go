package contract

import (
	"context"

	"kb-chat-be/internal/entity"

	"github.com/google/uuid"
)

type ChatSourceRepository interface {
	CreateBulk(ctx context.Context, sources []*entity.ChatSource) error
	// FindAllByMessageIds returns sources for the given messages ordered by
	// source_number within each message.
	FindAllByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.ChatSource, error)
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
}
