package ratelimit

import (
	"context"
	"fmt"
	"time"

	"kb-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const (
	ScopeUser         = "user"
	ScopeOrganization = "organization"

	DefaultUserHourlyLimit = 50
	DefaultOrgDailyLimit   = 1000

	// keyGrace keeps expired counter keys around briefly so a clock-skewed
	// instance cannot resurrect a window with a fresh count.
	keyGrace = 5 * time.Minute
)

// Decision is the outcome of a rate-limit check. ResetAt is only meaningful
// when Allowed is false and names the wall-clock instant the exhausted window
// reopens.
type Decision struct {
	Allowed bool
	Scope   string
	Limit   int64
	ResetAt time.Time
}

// Limiter enforces two independent fixed windows: messages per user per hour
// and messages per organization per day. Check is the cheapest gate in the
// pipeline and runs before any retrieval or generation cost is incurred.
type Limiter struct {
	counter    Counter
	userHourly int64
	orgDaily   int64
	logger     logger.ILogger
	now        func() time.Time
}

func NewLimiter(counter Counter, userHourly, orgDaily int64, log logger.ILogger) *Limiter {
	if userHourly <= 0 {
		userHourly = DefaultUserHourlyLimit
	}
	if orgDaily <= 0 {
		orgDaily = DefaultOrgDailyLimit
	}
	return &Limiter{
		counter:    counter,
		userHourly: userHourly,
		orgDaily:   orgDaily,
		logger:     log,
		now:        time.Now,
	}
}

// Check atomically consumes one slot from both windows. The user window is
// consumed first; a denial there leaves the organization window untouched.
// Counter failures fail open: a broken Redis must not take chat down with it.
func (l *Limiter) Check(ctx context.Context, userId, organizationId uuid.UUID) (*Decision, error) {
	now := l.now().UTC()

	hourBucket := now.Truncate(time.Hour)
	userKey := fmt.Sprintf("ratelimit:user:%s:%d", userId, hourBucket.Unix())
	userCount, err := l.counter.Incr(ctx, userKey, time.Hour+keyGrace)
	if err != nil {
		l.logger.Warn("ratelimit", "counter unavailable, allowing request", map[string]interface{}{
			"scope": ScopeUser,
			"error": err.Error(),
		})
		return &Decision{Allowed: true}, nil
	}
	if userCount > l.userHourly {
		return &Decision{
			Allowed: false,
			Scope:   ScopeUser,
			Limit:   l.userHourly,
			ResetAt: hourBucket.Add(time.Hour),
		}, nil
	}

	dayBucket := now.Truncate(24 * time.Hour)
	orgKey := fmt.Sprintf("ratelimit:org:%s:%d", organizationId, dayBucket.Unix())
	orgCount, err := l.counter.Incr(ctx, orgKey, 24*time.Hour+keyGrace)
	if err != nil {
		l.logger.Warn("ratelimit", "counter unavailable, allowing request", map[string]interface{}{
			"scope": ScopeOrganization,
			"error": err.Error(),
		})
		return &Decision{Allowed: true}, nil
	}
	if orgCount > l.orgDaily {
		return &Decision{
			Allowed: false,
			Scope:   ScopeOrganization,
			Limit:   l.orgDaily,
			ResetAt: dayBucket.Add(24 * time.Hour),
		}, nil
	}

	return &Decision{Allowed: true}, nil
}
