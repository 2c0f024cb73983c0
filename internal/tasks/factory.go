package tasks

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStore picks the Postgres store when a pool is available and falls back
// to the in-memory store otherwise.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	if pool == nil {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, pool)
}
