package order

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns the pgx-backed order repository.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateOrderInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
INSERT INTO orders (id, session_id, email, created_at)
VALUES ($1, $2, $3, $4)
`
	if _, err := tx.Exec(ctx, insertOrder, in.OrderID, in.SessionID, in.Email, in.CreatedAt); err != nil {
		return err
	}

	const insertLine = `
INSERT INTO order_line_items
  (order_id, uid, permalink, option_id, quantity, perceived_price_cents, discount_code, success, content_url, url_parameters, payload, result)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	const bumpStats = `
INSERT INTO affiliate_stats (affiliate_id, sales_cents, sales_count)
VALUES ($1, $2, 1)
ON CONFLICT (affiliate_id)
DO UPDATE SET sales_cents = affiliate_stats.sales_cents + EXCLUDED.sales_cents,
              sales_count = affiliate_stats.sales_count + 1
`
	for _, line := range in.Lines {
		payload, err := json.Marshal(line.Payload)
		if err != nil {
			return err
		}
		result, err := json.Marshal(line.Result)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertLine,
			in.OrderID,
			line.Payload.UID,
			line.Payload.Permalink,
			line.Payload.OptionID,
			line.Payload.Quantity,
			line.Payload.PerceivedPrice,
			line.Payload.DiscountCode,
			line.Result.Success,
			line.Result.ContentURL,
			line.Payload.URLParameters,
			payload,
			result,
		); err != nil {
			return err
		}
		if line.Result.Success && line.Payload.AffiliateID != "" {
			if _, err := tx.Exec(ctx, bumpStats, line.Payload.AffiliateID, line.Payload.PerceivedPrice); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: created order=%s lines=%d", in.OrderID, len(in.Lines))
	return nil
}
