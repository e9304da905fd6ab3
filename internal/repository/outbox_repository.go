package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

// DefaultLease is how long a claimed task stays invisible to other pollers.
const DefaultLease = time.Minute

type outboxRepository struct {
	q     *db.Queries
	lease time.Duration
}

func NewOutbox(pool *pgxpool.Pool, lease time.Duration) (port.TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if lease <= 0 {
		lease = DefaultLease
	}

	return &outboxRepository{
		q:     db.New(pool),
		lease: lease,
	}, nil
}

func (r *outboxRepository) Enqueue(ctx context.Context, task domain.Task) error {
	if task.Kind == "" {
		return fmt.Errorf("task kind is empty")
	}
	if len(task.Payload) == 0 {
		return fmt.Errorf("task payload is empty")
	}

	next := task.NextAttemptAt
	if next.IsZero() {
		next = time.Now()
	}

	if _, err := r.q.EnqueueTask(ctx, db.EnqueueTaskParams{
		Kind:          string(task.Kind),
		Payload:       task.Payload,
		NextAttemptAt: next,
	}); err != nil {
		return fmt.Errorf("q.EnqueueTask: %w", err)
	}

	return nil
}

// ClaimDue leases up to limit pending tasks that are due at now.
// A task whose poller dies becomes due again once the lease runs out.
func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := r.q.ClaimDueTasks(ctx, db.ClaimDueTasksParams{
		LeaseUntil: now.Add(r.lease),
		Now:        now,
		MaxTasks:   int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("q.ClaimDueTasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, domain.Task{
			ID:            row.ID,
			Kind:          domain.TaskKind(row.Kind),
			Payload:       row.Payload,
			Attempts:      int(row.Attempts),
			NextAttemptAt: row.NextAttemptAt,
		})
	}

	slices.SortFunc(tasks, func(a, b domain.Task) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return tasks, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id int64) error {
	if err := r.q.MarkTaskDone(ctx, id); err != nil {
		return fmt.Errorf("q.MarkTaskDone: %w", err)
	}
	return nil
}

func (r *outboxRepository) Reschedule(ctx context.Context, id int64, attempts int, next time.Time, lastErr string) error {
	if err := r.q.RescheduleTask(ctx, db.RescheduleTaskParams{
		ID:            id,
		Attempts:      int32(attempts),
		NextAttemptAt: next,
		LastError:     pgtype.Text{String: lastErr, Valid: true},
	}); err != nil {
		return fmt.Errorf("q.RescheduleTask: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkDead(ctx context.Context, id int64, attempts int, lastErr string) error {
	if err := r.q.MarkTaskDead(ctx, db.MarkTaskDeadParams{
		ID:        id,
		Attempts:  int32(attempts),
		LastError: pgtype.Text{String: lastErr, Valid: true},
	}); err != nil {
		return fmt.Errorf("q.MarkTaskDead: %w", err)
	}
	return nil
}
