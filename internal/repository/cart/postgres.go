package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator-checkout/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns the pgx-backed snapshot repository.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) UpsertSnapshot(ctx context.Context, sessionID string, snapshot []byte) error {
	const q = `
INSERT INTO carts (session_id, snapshot, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (session_id)
DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, sessionID, snapshot)
	return err
}

func (r *postgresRepo) GetSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	const q = `
SELECT snapshot
FROM carts
WHERE session_id = $1
`
	var snapshot []byte
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return snapshot, nil
}
