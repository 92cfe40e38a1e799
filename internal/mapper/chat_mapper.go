package mapper

import (
	"encoding/json"
	"time"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:             s.Id,
		UserId:         s.UserId,
		OrganizationId: s.OrganizationId,
		Status:         entity.SessionStatus(s.Status),
		Title:          s.Title,
		LastActiveAt:   s.LastActiveAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:             s.Id,
		UserId:         s.UserId,
		OrganizationId: s.OrganizationId,
		Status:         string(s.Status),
		Title:          s.Title,
		LastActiveAt:   s.LastActiveAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var usage entity.TokenUsage
	if len(msg.Usage) > 0 {
		// Best effort; an unreadable usage blob should not fail a read path.
		_ = json.Unmarshal(msg.Usage, &usage)
	}

	return &entity.ChatMessage{
		Id:             msg.Id,
		ChatSessionId:  msg.ChatSessionId,
		Role:           msg.Role,
		Content:        msg.Content,
		Status:         entity.MessageStatus(msg.Status),
		FailureStage:   msg.FailureStage,
		Mode:           msg.Mode,
		Model:          msg.Model,
		Usage:          usage,
		AttributionRaw: []byte(msg.AttributionRaw),
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	usage, _ := json.Marshal(msg.Usage)

	return &model.ChatMessage{
		Id:             msg.Id,
		ChatSessionId:  msg.ChatSessionId,
		Role:           msg.Role,
		Content:        msg.Content,
		Status:         string(msg.Status),
		FailureStage:   msg.FailureStage,
		Mode:           msg.Mode,
		Model:          msg.Model,
		Usage:          datatypes.JSON(usage),
		AttributionRaw: datatypes.JSON(msg.AttributionRaw),
		CreatedAt:      msg.CreatedAt,
	}
}

// Source Mappers

func (m *ChatMapper) ChatSourceToEntity(s *model.ChatSource) *entity.ChatSource {
	if s == nil {
		return nil
	}

	return &entity.ChatSource{
		Id:            s.Id,
		ChatMessageId: s.ChatMessageId,
		DocumentId:    s.DocumentId,
		DocumentName:  s.DocumentName,
		PageNumber:    s.PageNumber,
		ChunkText:     s.ChunkText,
		Score:         s.Score,
		SourceNumber:  s.SourceNumber,
		IsUsed:        s.IsUsed,
		UsageReason:   s.UsageReason,
		CreatedAt:     s.CreatedAt,
	}
}

func (m *ChatMapper) ChatSourceToModel(s *entity.ChatSource) *model.ChatSource {
	if s == nil {
		return nil
	}

	return &model.ChatSource{
		Id:            s.Id,
		ChatMessageId: s.ChatMessageId,
		DocumentId:    s.DocumentId,
		DocumentName:  s.DocumentName,
		PageNumber:    s.PageNumber,
		ChunkText:     s.ChunkText,
		Score:         s.Score,
		SourceNumber:  s.SourceNumber,
		IsUsed:        s.IsUsed,
		UsageReason:   s.UsageReason,
		CreatedAt:     s.CreatedAt,
	}
}
