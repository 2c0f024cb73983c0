package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a shared pgx pool. All mutations are
// conditional UPDATE statements: the WHERE clause carries both the state
// precondition and the authorization predicate, and RowsAffected is the
// only success signal. There is no read-then-write anywhere.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := initTaskSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			creator_id BIGINT NOT NULL,
			task_text TEXT NOT NULL,
			marked BOOLEAN NOT NULL DEFAULT FALSE,
			deadline TIMESTAMPTZ NULL,
			workers BIGINT[] NOT NULL DEFAULT '{}',
			assigned BOOLEAN NOT NULL DEFAULT FALSE,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_chat_open ON tasks (chat_id) WHERE NOT closed;`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			task_id BIGINT NOT NULL REFERENCES tasks(id),
			user_id BIGINT NOT NULL,
			datetime TIMESTAMPTZ NOT NULL,
			canceled BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (datetime) WHERE NOT canceled;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema failed on %q: %w", stmt, classify(err))
		}
	}
	return nil
}

const taskColumns = `id, chat_id, creator_id, task_text, marked, deadline, workers, assigned, closed, created_at`

func (s *PostgresStore) Add(ctx context.Context, chatID, creatorID int64, text string, opts AddOptions) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty task text", ErrInvalidArgument)
	}
	workers := opts.Workers
	if workers == nil {
		workers = []int64{}
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (chat_id, creator_id, task_text, marked, deadline, workers, assigned)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		chatID, creatorID, text, opts.Marked, opts.Deadline, workers, len(workers) > 0,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add task: %w", classify(err))
	}
	return id, nil
}

// Close flips closed=true and cancels every reminder pointing at the task
// in one transaction. The close predicate (creator, current worker, nobody
// working, or chat admin) lives in the WHERE clause.
func (s *PostgresStore) Close(ctx context.Context, taskID, chatID, userID int64, isAdmin bool) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET closed = TRUE
		  WHERE id = $1 AND chat_id = $2 AND NOT closed
		    AND ($4 OR creator_id = $3 OR $3 = ANY(workers) OR cardinality(workers) = 0)`,
		taskID, chatID, userID, isAdmin,
	)
	if err != nil {
		return false, fmt.Errorf("close task: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE reminders SET canceled = TRUE WHERE task_id = $1 AND NOT canceled`,
		taskID,
	); err != nil {
		return false, fmt.Errorf("cascade cancel reminders: %w", classify(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", classify(err))
	}
	return true, nil
}

// Assign sets the worker set. A self-claim (the caller claiming alone,
// without admin rights) additionally requires the current set to be empty
// inside the same UPDATE, so of N concurrent claims exactly one wins.
func (s *PostgresStore) Assign(ctx context.Context, taskID, chatID, userID int64, workers []int64, isAdmin bool) (bool, error) {
	if len(workers) == 0 {
		return false, fmt.Errorf("%w: empty worker set", ErrInvalidArgument)
	}
	selfClaim := !isAdmin && len(workers) == 1 && workers[0] == userID
	if !isAdmin && !selfClaim {
		return false, nil
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if selfClaim {
		tag, err = s.pool.Exec(ctx,
			`UPDATE tasks SET workers = $3, assigned = FALSE
			  WHERE id = $1 AND chat_id = $2 AND NOT closed AND cardinality(workers) = 0`,
			taskID, chatID, workers,
		)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE tasks SET workers = $3, assigned = TRUE
			  WHERE id = $1 AND chat_id = $2 AND NOT closed`,
			taskID, chatID, workers,
		)
	}
	if err != nil {
		return false, fmt.Errorf("assign task: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RemoveWorker(ctx context.Context, taskID, chatID, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET workers = array_remove(workers, $3)
		  WHERE id = $1 AND chat_id = $2 AND NOT closed AND NOT assigned AND $3 = ANY(workers)`,
		taskID, chatID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove worker: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetDeadline(ctx context.Context, taskID, chatID, userID int64, deadline *time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET deadline = $4
		  WHERE id = $1 AND chat_id = $2 AND NOT closed
		    AND (creator_id = $3 OR $3 = ANY(workers))`,
		taskID, chatID, userID, deadline,
	)
	if err != nil {
		return false, fmt.Errorf("set deadline: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetMarked(ctx context.Context, taskID, chatID, userID int64, marked, isAdmin bool) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET marked = $4
		  WHERE id = $1 AND chat_id = $2 AND NOT closed AND ($5 OR creator_id = $3)`,
		taskID, chatID, userID, marked, isAdmin,
	)
	if err != nil {
		return false, fmt.Errorf("set marked: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) List(ctx context.Context, chatID int64, freeOnly bool) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE chat_id = $1 AND NOT closed`
	if freeOnly {
		query += ` AND cardinality(workers) = 0`
	}
	query += ` ORDER BY marked DESC, deadline ASC NULLS LAST, id ASC`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", classify(err))
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) ListByWorker(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		  WHERE $1 = ANY(workers) AND NOT closed
		  ORDER BY marked DESC, deadline ASC NULLS LAST, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by worker: %w", classify(err))
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) Info(ctx context.Context, taskID int64) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("task info: %w", classify(err))
	}
	return task, nil
}

func (s *PostgresStore) CloseStore() error { return nil }

func collectTasks(rows pgx.Rows) ([]Task, error) {
	out := make([]Task, 0, 16)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", classify(err))
	}
	return out, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var task Task
	if err := row.Scan(
		&task.ID,
		&task.ChatID,
		&task.CreatorID,
		&task.Text,
		&task.Marked,
		&task.Deadline,
		&task.Workers,
		&task.Assigned,
		&task.Closed,
		&task.CreatedAt,
	); err != nil {
		return Task{}, err
	}
	return task, nil
}

// classify maps connection-level failures onto ErrUnavailable so the engine
// can tell "store unreachable" from "query rejected".
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
