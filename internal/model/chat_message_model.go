package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatMessage struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role          string         `gorm:"type:varchar(20);not null"`
	Content       string         `gorm:"type:text;not null"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending'"`
	FailureStage  string         `gorm:"type:varchar(20)"`
	Mode          string         `gorm:"type:varchar(20)"`
	Model         string         `gorm:"type:varchar(100)"`
	Usage         datatypes.JSON `gorm:"column:token_usage"`
	// Raw structured attribution payload as returned by generation, kept for audit.
	AttributionRaw datatypes.JSON `gorm:"column:attribution_raw"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
