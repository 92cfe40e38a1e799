package service

import (
	"context"
	"encoding/json"

	"kb-chat-be/internal/constant"
	"kb-chat-be/internal/dto"
	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/pkg/logger"
	"kb-chat-be/internal/repository/specification"
	"kb-chat-be/internal/repository/unitofwork"
	"kb-chat-be/pkg/chat/orchestrator"
	"kb-chat-be/pkg/chat/ratelimit"
	"kb-chat-be/pkg/chat/session"

	"github.com/google/uuid"
)

type IChatService interface {
	SendMessage(ctx context.Context, userId, organizationId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	GetActiveSession(ctx context.Context, userId, organizationId uuid.UUID) (*dto.ChatSessionResponse, error)
	StartSession(ctx context.Context, userId, organizationId uuid.UUID) (*dto.ChatSessionResponse, error)
	GetAllSessions(ctx context.Context, userId, organizationId uuid.UUID, req *dto.GetAllSessionsRequest) (*dto.GetAllSessionsResponse, error)
	GetSessionMessages(ctx context.Context, userId, organizationId, sessionId uuid.UUID, req *dto.GetSessionMessagesRequest) (*dto.GetSessionMessagesResponse, error)
	RenameSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID, req *dto.RenameSessionRequest) error
	ArchiveSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID) error
	DeleteSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID) error
}

type chatService struct {
	uowFactory       unitofwork.RepositoryFactory
	limiter          *ratelimit.Limiter
	sessionManager   *session.Manager
	orchestrator     *orchestrator.Orchestrator
	publisherService IPublisherService
	logger           logger.ILogger
	defaultModel     string
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	limiter *ratelimit.Limiter,
	orch *orchestrator.Orchestrator,
	publisherService IPublisherService,
	log logger.ILogger,
	defaultModel string,
) IChatService {
	return &chatService{
		uowFactory:       uowFactory,
		limiter:          limiter,
		sessionManager:   session.NewManager(),
		orchestrator:     orch,
		publisherService: publisherService,
		logger:           log,
		defaultModel:     defaultModel,
	}
}

func (c *chatService) SendMessage(ctx context.Context, userId, organizationId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	// The limit gate runs before any session or pipeline work so denied
	// requests cost nothing.
	decision, err := c.limiter.Check(ctx, userId, organizationId)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &dto.RateLimitError{
			Scope:   decision.Scope,
			Limit:   decision.Limit,
			ResetAt: decision.ResetAt,
		}
	}

	// Session resolution holds its row lock only for this transaction; the
	// lock is released before the long retrieval/generation work starts.
	chatSession, err := c.resolveTarget(ctx, userId, organizationId, req.ChatSessionId)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = constant.ChatModeBalanced
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result, err := c.orchestrator.Execute(ctx, &orchestrator.Request{
		Session:  chatSession,
		Question: req.Question,
		Mode:     mode,
		Model:    model,
	})
	if err != nil {
		return nil, err
	}

	c.publishCompleted(ctx, result)

	reply := messageToDTO(result.Message)
	return &dto.SendMessageResponse{
		ChatSessionId:    result.Session.Id,
		ChatSessionTitle: result.Session.Title,
		Reply:            &reply,
	}, nil
}

// resolveTarget picks the session the message goes to: an explicit session id
// is verified against the caller, no id means the caller's active session
// (created on demand).
func (c *chatService) resolveTarget(ctx context.Context, userId, organizationId uuid.UUID, sessionId *uuid.UUID) (*entity.ChatSession, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	var (
		chatSession *entity.ChatSession
		err         error
	)
	if sessionId != nil {
		chatSession, err = c.sessionManager.Verify(ctx, uow, userId, organizationId, *sessionId)
	} else {
		chatSession, err = c.sessionManager.Resolve(ctx, uow, userId, organizationId)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return chatSession, nil
}

func (c *chatService) publishCompleted(ctx context.Context, result *orchestrator.Result) {
	payload, err := json.Marshal(dto.PublishChatCompletedMessage{
		ChatSessionId:  result.Session.Id,
		MessageId:      result.Message.Id,
		UserId:         result.Session.UserId,
		OrganizationId: result.Session.OrganizationId,
		SourceCount:    len(result.Message.Sources),
	})
	if err != nil {
		return
	}
	// Event publication is auxiliary; the exchange already persisted.
	if err := c.publisherService.Publish(ctx, payload); err != nil {
		c.logger.Warn("chat", "failed to publish completed-message event", map[string]interface{}{
			"message_id": result.Message.Id.String(),
			"error":      err.Error(),
		})
	}
}

func (c *chatService) GetActiveSession(ctx context.Context, userId, organizationId uuid.UUID) (*dto.ChatSessionResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	chatSession, err := c.sessionManager.Resolve(ctx, uow, userId, organizationId)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	res := sessionToDTO(chatSession)
	return &res, nil
}

func (c *chatService) StartSession(ctx context.Context, userId, organizationId uuid.UUID) (*dto.ChatSessionResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	chatSession, err := c.sessionManager.StartNew(ctx, uow, userId, organizationId)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	res := sessionToDTO(chatSession)
	return &res, nil
}

func (c *chatService) GetAllSessions(ctx context.Context, userId, organizationId uuid.UUID, req *dto.GetAllSessionsRequest) (*dto.GetAllSessionsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	uow := c.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.ChatSessionRepository().Count(ctx,
		specification.OwnedBy{UserID: userId, OrganizationID: organizationId},
	)
	if err != nil {
		return nil, err
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userId, OrganizationID: organizationId},
		specification.OrderBy{Field: "last_active_at", Desc: true},
		specification.Pagination{Limit: pageSize, Offset: (page - 1) * pageSize},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.GetAllSessionsResponse{
		Sessions: make([]dto.ChatSessionResponse, 0, len(sessions)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, s := range sessions {
		res.Sessions = append(res.Sessions, sessionToDTO(s))
	}
	return res, nil
}

func (c *chatService) GetSessionMessages(ctx context.Context, userId, organizationId, sessionId uuid.UUID, req *dto.GetSessionMessagesRequest) (*dto.GetSessionMessagesResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.sessionManager.Verify(ctx, uow, userId, organizationId, sessionId); err != nil {
		return nil, err
	}

	total, err := uow.ChatMessageRepository().Count(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
	)
	if err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
		specification.Pagination{Limit: pageSize, Offset: (page - 1) * pageSize},
	)
	if err != nil {
		return nil, err
	}

	if err := c.attachSources(ctx, uow, messages); err != nil {
		return nil, err
	}

	res := &dto.GetSessionMessagesResponse{
		ChatSessionId: sessionId,
		Messages:      make([]dto.ChatMessageDTO, 0, len(messages)),
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, messageToDTO(m))
	}
	return res, nil
}

func (c *chatService) attachSources(ctx context.Context, uow unitofwork.UnitOfWork, messages []*entity.ChatMessage) error {
	assistantIds := make([]uuid.UUID, 0, len(messages))
	byId := make(map[uuid.UUID]*entity.ChatMessage, len(messages))
	for _, m := range messages {
		if m.Role == entity.ChatMessageRoleAssistant {
			assistantIds = append(assistantIds, m.Id)
			byId[m.Id] = m
		}
	}
	if len(assistantIds) == 0 {
		return nil
	}

	sources, err := uow.ChatSourceRepository().FindAllByMessageIds(ctx, assistantIds)
	if err != nil {
		return err
	}
	for _, s := range sources {
		if m, ok := byId[s.ChatMessageId]; ok {
			m.Sources = append(m.Sources, s)
		}
	}
	return nil
}

func (c *chatService) RenameSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID, req *dto.RenameSessionRequest) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	chatSession, err := c.sessionManager.Verify(ctx, uow, userId, organizationId, sessionId)
	if err != nil {
		return err
	}

	chatSession.Title = req.Title
	if err := uow.ChatSessionRepository().Update(ctx, chatSession); err != nil {
		return err
	}
	return uow.Commit()
}

func (c *chatService) ArchiveSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	chatSession, err := c.sessionManager.Verify(ctx, uow, userId, organizationId, sessionId)
	if err != nil {
		return err
	}

	if err := c.sessionManager.Archive(ctx, uow, chatSession); err != nil {
		return err
	}
	return uow.Commit()
}

func (c *chatService) DeleteSession(ctx context.Context, userId, organizationId, sessionId uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	chatSession, err := c.sessionManager.Verify(ctx, uow, userId, organizationId, sessionId)
	if err != nil {
		return err
	}

	if err := c.sessionManager.Delete(ctx, uow, chatSession); err != nil {
		return err
	}
	return uow.Commit()
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func sessionToDTO(s *entity.ChatSession) dto.ChatSessionResponse {
	return dto.ChatSessionResponse{
		Id:           s.Id,
		Title:        s.Title,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

func messageToDTO(m *entity.ChatMessage) dto.ChatMessageDTO {
	res := dto.ChatMessageDTO{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		Status:    string(m.Status),
		Mode:      m.Mode,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
	}
	for _, s := range m.Sources {
		res.Sources = append(res.Sources, dto.ChatSourceDTO{
			SourceNumber: s.SourceNumber,
			DocumentId:   s.DocumentId,
			DocumentName: s.DocumentName,
			PageNumber:   s.PageNumber,
			ChunkText:    s.ChunkText,
			Score:        s.Score,
			IsUsed:       s.IsUsed,
			UsageReason:  s.UsageReason,
		})
	}
	return res
}
