package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"kb-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("counter down")
}

func TestLimiterUserWindow(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 3, 100, logger.NewNop())
	userId := uuid.New()
	orgId := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(ctx, userId, orgId)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	decision, err := limiter.Check(ctx, userId, orgId)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("request over the user limit should be denied")
	}
	if decision.Scope != ScopeUser {
		t.Errorf("Scope = %q, want %q", decision.Scope, ScopeUser)
	}
	if decision.Limit != 3 {
		t.Errorf("Limit = %d, want 3", decision.Limit)
	}
	if !decision.ResetAt.After(time.Now().UTC()) {
		t.Errorf("ResetAt = %v, want a future instant", decision.ResetAt)
	}
}

func TestLimiterOrgWindow(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 100, 2, logger.NewNop())
	orgId := uuid.New()
	ctx := context.Background()

	// Different users so only the organization window fills.
	for i := 0; i < 2; i++ {
		decision, err := limiter.Check(ctx, uuid.New(), orgId)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	decision, err := limiter.Check(ctx, uuid.New(), orgId)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("request over the organization limit should be denied")
	}
	if decision.Scope != ScopeOrganization {
		t.Errorf("Scope = %q, want %q", decision.Scope, ScopeOrganization)
	}
}

func TestLimiterScopesAreIndependent(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 1, 100, logger.NewNop())
	orgId := uuid.New()
	ctx := context.Background()

	blocked := uuid.New()
	if decision, _ := limiter.Check(ctx, blocked, orgId); !decision.Allowed {
		t.Fatal("first request should be allowed")
	}
	if decision, _ := limiter.Check(ctx, blocked, orgId); decision.Allowed {
		t.Fatal("second request for the same user should be denied")
	}

	// Another user in the same organization is unaffected.
	if decision, _ := limiter.Check(ctx, uuid.New(), orgId); !decision.Allowed {
		t.Fatal("a different user should still be allowed")
	}
}

func TestLimiterUserDenialLeavesOrgWindowUntouched(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 1, 2, logger.NewNop())
	orgId := uuid.New()
	ctx := context.Background()

	userId := uuid.New()
	limiter.Check(ctx, userId, orgId)
	// Denied on the user window; must not consume an organization slot.
	limiter.Check(ctx, userId, orgId)

	if decision, _ := limiter.Check(ctx, uuid.New(), orgId); !decision.Allowed {
		t.Fatal("org window should still have a free slot")
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingCounter{}, 1, 1, logger.NewNop())

	decision, err := limiter.Check(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("a broken counter should fail open")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 1, 100, logger.NewNop())
	userId := uuid.New()
	orgId := uuid.New()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	limiter.Check(ctx, userId, orgId)
	if decision, _ := limiter.Check(ctx, userId, orgId); decision.Allowed {
		t.Fatal("second request in the same hour should be denied")
	}

	// The next hour bucket opens a fresh window.
	limiter.now = func() time.Time { return base.Add(time.Hour) }
	if decision, _ := limiter.Check(ctx, userId, orgId); !decision.Allowed {
		t.Fatal("request in the next hour bucket should be allowed")
	}
}

func TestMemoryCounterConcurrent(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				counter.Incr(ctx, "k", time.Minute)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	count, err := counter.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1001 {
		t.Errorf("count = %d, want 1001", count)
	}
}
