package stats

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

// NewPostgres returns the pgx-backed stats repository.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetAffiliateStats(ctx context.Context, affiliateID string) (*domain.AffiliateStats, error) {
	const q = `
SELECT affiliate_id, sales_cents, sales_count
FROM affiliate_stats
WHERE affiliate_id = $1
`
	var s domain.AffiliateStats
	if err := r.pool.QueryRow(ctx, q, affiliateID).Scan(&s.AffiliateID, &s.SalesCents, &s.SalesCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
