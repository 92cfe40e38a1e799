package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"kb-chat-be/internal/constant"
	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/repository/specification"
	"kb-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound covers both a missing session and a session the
	// caller's organization may not see; the caller cannot tell them apart.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrCrossOrganization is returned when a session exists but belongs to a
	// different organization than the caller's.
	ErrCrossOrganization = errors.New("chat session belongs to another organization")
)

// Manager owns the active-session invariant: at most one active session per
// (user, organization) pair. Resolve and StartNew must run inside the caller's
// transaction; both take a pair-scoped advisory lock so concurrent calls
// serialize even when no active row exists to lock. A partial unique index on
// active rows backs the invariant at the schema level.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Resolve returns the pair's active session, creating one if none exists.
func (m *Manager) Resolve(ctx context.Context, uow unitofwork.UnitOfWork, userId, organizationId uuid.UUID) (*entity.ChatSession, error) {
	repo := uow.ChatSessionRepository()

	// FOR UPDATE alone is not enough: with no active row there is nothing to
	// lock, and two transactions could both create. The advisory lock
	// serializes the whole check-then-create.
	if err := repo.LockOwner(ctx, userId, organizationId); err != nil {
		return nil, err
	}

	active, err := repo.FindOne(ctx,
		specification.OwnedBy{UserID: userId, OrganizationID: organizationId},
		specification.BySessionStatus{Status: string(entity.SessionStatusActive)},
		specification.ForUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	return m.create(ctx, uow, userId, organizationId)
}

// StartNew archives any current active session for the pair and creates a
// fresh active one. The archive and create happen in the same transaction.
func (m *Manager) StartNew(ctx context.Context, uow unitofwork.UnitOfWork, userId, organizationId uuid.UUID) (*entity.ChatSession, error) {
	repo := uow.ChatSessionRepository()

	// Serialize against concurrent Resolve/StartNew for the same pair before
	// the archive-then-create sequence.
	if err := repo.LockOwner(ctx, userId, organizationId); err != nil {
		return nil, err
	}

	if _, err := repo.ArchiveAllActive(ctx, userId, organizationId); err != nil {
		return nil, err
	}

	return m.create(ctx, uow, userId, organizationId)
}

func (m *Manager) create(ctx context.Context, uow unitofwork.UnitOfWork, userId, organizationId uuid.UUID) (*entity.ChatSession, error) {
	now := time.Now()
	session := &entity.ChatSession{
		Id:             uuid.New(),
		UserId:         userId,
		OrganizationId: organizationId,
		Status:         entity.SessionStatusActive,
		Title:          constant.DefaultSessionTitle,
		LastActiveAt:   now,
		CreatedAt:      now,
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Verify loads a session by id and checks it is visible to the caller.
func (m *Manager) Verify(ctx context.Context, uow unitofwork.UnitOfWork, userId, organizationId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status == entity.SessionStatusDeleted {
		return nil, ErrSessionNotFound
	}
	if session.OrganizationId != organizationId {
		return nil, ErrCrossOrganization
	}
	if session.UserId != userId {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Archive flips a session to archived. Idempotent: archiving an archived
// session is a no-op.
func (m *Manager) Archive(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession) error {
	if session.Status == entity.SessionStatusArchived {
		return nil
	}
	session.Status = entity.SessionStatusArchived
	return uow.ChatSessionRepository().Update(ctx, session)
}

// Delete soft-deletes a session and removes its messages and sources.
// Idempotent: deleting a deleted session is a no-op.
func (m *Manager) Delete(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession) error {
	if session.Status == entity.SessionStatusDeleted {
		return nil
	}
	session.Status = entity.SessionStatusDeleted
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return err
	}
	if err := uow.ChatSourceRepository().DeleteByChatSessionId(ctx, session.Id); err != nil {
		return err
	}
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id); err != nil {
		return err
	}
	return uow.ChatSessionRepository().Delete(ctx, session.Id)
}

// DeriveTitle builds a session title from the first question, truncated to the
// configured cap without splitting a rune.
func DeriveTitle(question string) string {
	title := strings.TrimSpace(question)
	if title == "" {
		return constant.DefaultSessionTitle
	}
	runes := []rune(title)
	if len(runes) > constant.SessionTitleMaxLen {
		title = string(runes[:constant.SessionTitleMaxLen])
	}
	return title
}
