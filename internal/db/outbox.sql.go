package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const claimDueTasks = `-- name: ClaimDueTasks :many
UPDATE outbox_tasks
SET next_attempt_at = $1::timestamptz,
    updated_at      = now()
WHERE id IN (SELECT t.id
             FROM outbox_tasks t
             WHERE t.status = 'pending'
               AND t.next_attempt_at <= $2::timestamptz
             ORDER BY t.next_attempt_at, t.id
             LIMIT $3::int FOR UPDATE SKIP LOCKED)
RETURNING id, kind, payload, attempts, next_attempt_at
`

type ClaimDueTasksParams struct {
	LeaseUntil time.Time
	Now        time.Time
	MaxTasks   int32
}

type ClaimDueTasksRow struct {
	ID            int64
	Kind          string
	Payload       []byte
	Attempts      int32
	NextAttemptAt time.Time
}

func (q *Queries) ClaimDueTasks(ctx context.Context, arg ClaimDueTasksParams) ([]ClaimDueTasksRow, error) {
	rows, err := q.db.Query(ctx, claimDueTasks, arg.LeaseUntil, arg.Now, arg.MaxTasks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClaimDueTasksRow
	for rows.Next() {
		var i ClaimDueTasksRow
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.Payload,
			&i.Attempts,
			&i.NextAttemptAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const enqueueTask = `-- name: EnqueueTask :one
INSERT INTO outbox_tasks (kind, payload, next_attempt_at)
VALUES ($1, $2, $3)
RETURNING id
`

type EnqueueTaskParams struct {
	Kind          string
	Payload       []byte
	NextAttemptAt time.Time
}

func (q *Queries) EnqueueTask(ctx context.Context, arg EnqueueTaskParams) (int64, error) {
	row := q.db.QueryRow(ctx, enqueueTask, arg.Kind, arg.Payload, arg.NextAttemptAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const markTaskDead = `-- name: MarkTaskDead :exec
UPDATE outbox_tasks
SET status     = 'dead',
    payload    = payload - 'bearerToken',
    attempts   = $2,
    last_error = $3,
    updated_at = now()
WHERE id = $1
`

type MarkTaskDeadParams struct {
	ID        int64
	Attempts  int32
	LastError pgtype.Text
}

func (q *Queries) MarkTaskDead(ctx context.Context, arg MarkTaskDeadParams) error {
	_, err := q.db.Exec(ctx, markTaskDead, arg.ID, arg.Attempts, arg.LastError)
	return err
}

const markTaskDone = `-- name: MarkTaskDone :exec
UPDATE outbox_tasks
SET status     = 'done',
    payload    = payload - 'bearerToken',
    updated_at = now()
WHERE id = $1
`

func (q *Queries) MarkTaskDone(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markTaskDone, id)
	return err
}

const rescheduleTask = `-- name: RescheduleTask :exec
UPDATE outbox_tasks
SET attempts        = $2,
    next_attempt_at = $3,
    last_error      = $4,
    updated_at      = now()
WHERE id = $1
`

type RescheduleTaskParams struct {
	ID            int64
	Attempts      int32
	NextAttemptAt time.Time
	LastError     pgtype.Text
}

func (q *Queries) RescheduleTask(ctx context.Context, arg RescheduleTaskParams) error {
	_, err := q.db.Exec(ctx, rescheduleTask,
		arg.ID,
		arg.Attempts,
		arg.NextAttemptAt,
		arg.LastError,
	)
	return err
}
