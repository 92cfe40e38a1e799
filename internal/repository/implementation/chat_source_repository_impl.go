package implementation

import (
	"context"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/mapper"
	"kb-chat-be/internal/model"
	"kb-chat-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSourceRepository(db *gorm.DB) contract.ChatSourceRepository {
	return &ChatSourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSourceRepositoryImpl) CreateBulk(ctx context.Context, sources []*entity.ChatSource) error {
	if len(sources) == 0 {
		return nil
	}
	models := make([]*model.ChatSource, len(sources))
	for i, s := range sources {
		models[i] = r.mapper.ChatSourceToModel(s)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*sources[i] = *r.mapper.ChatSourceToEntity(m)
	}
	return nil
}

func (r *ChatSourceRepositoryImpl) FindAllByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.ChatSource, error) {
	if len(messageIds) == 0 {
		return nil, nil
	}
	var models []*model.ChatSource
	err := r.db.WithContext(ctx).
		Where("chat_message_id IN ?", messageIds).
		Order("chat_message_id, source_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatSource, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatSourceToEntity(m)
	}
	return entities, nil
}

func (r *ChatSourceRepositoryImpl) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("chat_message_id IN (?)",
			r.db.Model(&model.ChatMessage{}).Select("id").Where("chat_session_id = ?", sessionId)).
		Delete(&model.ChatSource{}).Error
}
