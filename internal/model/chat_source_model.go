package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSource struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatMessageId uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_sources_message_number,unique"`
	DocumentId    string    `gorm:"type:varchar(255);not null"`
	DocumentName  string    `gorm:"type:varchar(255);not null"`
	PageNumber    *int
	ChunkText     string  `gorm:"type:text;not null"`
	Score         float64 `gorm:"not null"`
	SourceNumber  int     `gorm:"not null;index:idx_chat_sources_message_number,unique"`
	IsUsed        *bool
	UsageReason   *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	ChatMessage *ChatMessage `gorm:"foreignKey:ChatMessageId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatSource) TableName() string {
	return "chat_sources"
}
