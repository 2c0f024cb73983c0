package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore shares the pool (and the reminders table bootstrapped by the
// task schema) with the task store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, taskID, userID int64, at time.Time) (int64, error) {
	if !at.After(time.Now()) {
		return 0, fmt.Errorf("%w: reminder time must be in the future", ErrInvalidArgument)
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reminders (task_id, user_id, datetime) VALUES ($1,$2,$3) RETURNING id`,
		taskID, userID, at,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create reminder: %w", classify(err))
	}
	return id, nil
}

func (s *PostgresStore) Reschedule(ctx context.Context, reminderID int64, at time.Time) (bool, error) {
	if !at.After(time.Now()) {
		return false, fmt.Errorf("%w: reminder time must be in the future", ErrInvalidArgument)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE reminders SET datetime = $2, canceled = FALSE WHERE id = $1`,
		reminderID, at,
	)
	if err != nil {
		return false, fmt.Errorf("reschedule reminder: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Cancel(ctx context.Context, reminderID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reminders SET canceled = TRUE WHERE id = $1 AND NOT canceled`,
		reminderID,
	)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Due(ctx context.Context, now time.Time) ([]DueReminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.task_id, r.user_id, r.datetime, r.canceled, t.task_text, t.deadline
		   FROM reminders r JOIN tasks t ON t.id = r.task_id
		  WHERE NOT r.canceled AND r.datetime <= $1
		  ORDER BY r.datetime ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", classify(err))
	}
	defer rows.Close()

	out := make([]DueReminder, 0, 8)
	for rows.Next() {
		var d DueReminder
		if err := rows.Scan(&d.ID, &d.TaskID, &d.UserID, &d.At, &d.Canceled, &d.TaskText, &d.TaskDeadline); err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder rows: %w", classify(err))
	}
	return out, nil
}

func (s *PostgresStore) CloseBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE reminders SET canceled = TRUE WHERE id = ANY($1)`, ids,
	); err != nil {
		return fmt.Errorf("close reminders: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, reminderID int64) (Reminder, error) {
	var r Reminder
	err := s.pool.QueryRow(ctx,
		`SELECT id, task_id, user_id, datetime, canceled FROM reminders WHERE id = $1`,
		reminderID,
	).Scan(&r.ID, &r.TaskID, &r.UserID, &r.At, &r.Canceled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, ErrNotFound
		}
		return Reminder{}, fmt.Errorf("get reminder: %w", classify(err))
	}
	return r, nil
}

func (s *PostgresStore) CloseStore() error { return nil }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
