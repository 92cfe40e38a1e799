package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSession struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_sessions_owner"`
	OrganizationId uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_sessions_owner"`
	Status         string         `gorm:"type:varchar(20);not null;default:'active';index"`
	Title          string         `gorm:"type:varchar(255);not null;default:'New Chat'"`
	LastActiveAt   time.Time      `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
