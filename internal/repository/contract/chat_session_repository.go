package contract

import (
	"context"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	// LockOwner takes a transaction-scoped advisory lock keyed on the
	// (user, organization) pair. A plain FOR UPDATE read cannot serialize
	// session creation when no active row exists yet, so callers that may
	// create a session take this lock first. Must run inside a transaction.
	LockOwner(ctx context.Context, userId, organizationId uuid.UUID) error
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// ArchiveAllActive flips every active session of the pair to archived and
	// returns how many rows changed. Combined with a ForUpdate read it keeps
	// the at-most-one-active invariant under concurrent start-new calls.
	ArchiveAllActive(ctx context.Context, userId, organizationId uuid.UUID) (int64, error)
}
