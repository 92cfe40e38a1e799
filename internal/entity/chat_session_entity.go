package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
	SessionStatusDeleted  SessionStatus = "deleted"
)

// ChatSession is one bounded conversation thread between a user and the
// assistant within one organization. At most one session per (user,
// organization) pair may have status "active" at any instant.
type ChatSession struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	OrganizationId uuid.UUID
	Status         SessionStatus
	Title          string
	CreatedAt      time.Time
	LastActiveAt   time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
