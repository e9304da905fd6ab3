package port

import (
	"context"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

// TaskQueue accepts best-effort work that must not block the caller's critical path.
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

type TaskStore interface {
	TaskQueue
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Task, error)
	MarkDone(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int, next time.Time, lastErr string) error
	MarkDead(ctx context.Context, id int64, attempts int, lastErr string) error
}
