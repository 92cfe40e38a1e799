package service

import (
	"context"
	"time"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/repository/specification"
	"kb-chat-be/internal/repository/unitofwork"
	"kb-chat-be/pkg/chat/orchestrator"

	"github.com/google/uuid"
)

// chatStore adapts the unit-of-work layer to the orchestrator's persistence
// contract.
type chatStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewChatStore(uowFactory unitofwork.RepositoryFactory) orchestrator.MessageStore {
	return &chatStore{uowFactory: uowFactory}
}

// History returns the session's last `limit` completed messages in
// chronological order. Failed messages are excluded from generation context.
func (s *chatStore) History(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.ByMessageStatus{Status: string(entity.MessageStatusCompleted)},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for the prompt.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SaveExchange writes the full exchange in one transaction: both messages,
// the sources, and the session's activity (and title, on the first message).
func (s *chatStore) SaveExchange(ctx context.Context, ex *orchestrator.Exchange) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, ex.UserMessage); err != nil {
		return err
	}

	if ex.AssistantMessage != nil {
		if err := uow.ChatMessageRepository().Create(ctx, ex.AssistantMessage); err != nil {
			return err
		}
		if len(ex.Sources) > 0 {
			if err := uow.ChatSourceRepository().CreateBulk(ctx, ex.Sources); err != nil {
				return err
			}
		}
	}

	ex.Session.LastActiveAt = time.Now()
	if ex.Title != "" {
		ex.Session.Title = ex.Title
	}
	if err := uow.ChatSessionRepository().Update(ctx, ex.Session); err != nil {
		return err
	}

	return uow.Commit()
}
