package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// OwnedBy scopes a query to one (user, organization) pair.
type OwnedBy struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? AND organization_id = ?", s.UserID, s.OrganizationID)
}

// ByOrganization scopes a query to one organization.
type ByOrganization struct {
	OrganizationID uuid.UUID
}

func (s ByOrganization) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("organization_id = ?", s.OrganizationID)
}

// BySessionStatus filters sessions by lifecycle status.
type BySessionStatus struct {
	Status string
}

func (s BySessionStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// ByMessageStatus filters messages by processing status.
type ByMessageStatus struct {
	Status string
}

func (s ByMessageStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
