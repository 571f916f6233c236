package product

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator-checkout/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns the pgx-backed catalog repository.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByPermalink(ctx context.Context, permalink string) (*domain.Product, error) {
	const q = `
SELECT payload, available_quantity
FROM products
WHERE permalink = $1
`
	var payload []byte
	var available *int64
	if err := r.pool.QueryRow(ctx, q, permalink).Scan(&payload, &available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return decodeProduct(payload, available)
}

func (r *postgresRepo) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	const q = `
SELECT payload, available_quantity
FROM products
WHERE name ILIKE '%' || $1 || '%' OR permalink ILIKE '%' || $1 || '%'
ORDER BY created_at DESC
LIMIT 50
`
	rows, err := r.pool.Query(ctx, q, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var payload []byte
		var available *int64
		if err := rows.Scan(&payload, &available); err != nil {
			return nil, err
		}
		p, err := decodeProduct(payload, available)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Printf("product repo: search query=%q count=%d", query, len(result))
	return result, nil
}

func (r *postgresRepo) ReserveStock(ctx context.Context, permalink, optionID string, quantity int) (*int64, bool, error) {
	if optionID != "" {
		return r.reserveOption(ctx, permalink, optionID, quantity)
	}
	return r.reserveProduct(ctx, permalink, quantity)
}

func (r *postgresRepo) reserveProduct(ctx context.Context, permalink string, quantity int) (*int64, bool, error) {
	// NULL stock means unlimited and stays NULL after the update.
	const reserve = `
UPDATE products
SET available_quantity = available_quantity - $2
WHERE permalink = $1 AND (available_quantity IS NULL OR available_quantity >= $2)
RETURNING available_quantity
`
	var remaining *int64
	err := r.pool.QueryRow(ctx, reserve, permalink, quantity).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	const current = `
SELECT available_quantity
FROM products
WHERE permalink = $1
`
	if err := r.pool.QueryRow(ctx, current, permalink).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, err
	}
	return remaining, false, nil
}

// reserveOption decrements the option's own quantity inside the payload
// under a row lock. Options without their own quantity share the
// product-level stock.
func (r *postgresRepo) reserveOption(ctx context.Context, permalink, optionID string, quantity int) (*int64, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	const lock = `
SELECT payload, available_quantity
FROM products
WHERE permalink = $1
FOR UPDATE
`
	var payload []byte
	var available *int64
	if err := tx.QueryRow(ctx, lock, permalink).Scan(&payload, &available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, err
	}
	p, err := decodeProduct(payload, available)
	if err != nil {
		return nil, false, err
	}

	opt := p.Option(optionID)
	if opt == nil || opt.AvailableQuantity == nil {
		// Release the row lock before taking the product-level path on a
		// fresh connection.
		_ = tx.Rollback(ctx)
		return r.reserveProduct(ctx, permalink, quantity)
	}
	if *opt.AvailableQuantity < int64(quantity) {
		remaining := *opt.AvailableQuantity
		return &remaining, false, nil
	}
	*opt.AvailableQuantity -= int64(quantity)

	updated, err := json.Marshal(p)
	if err != nil {
		return nil, false, err
	}
	const write = `
UPDATE products
SET payload = $2
WHERE permalink = $1
`
	if _, err := tx.Exec(ctx, write, permalink, updated); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	remaining := *opt.AvailableQuantity
	return &remaining, true, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO products (permalink, name, creator, price_cents, currency, available_quantity, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (permalink)
DO UPDATE SET name = EXCLUDED.name,
              creator = EXCLUDED.creator,
              price_cents = EXCLUDED.price_cents,
              currency = EXCLUDED.currency,
              available_quantity = EXCLUDED.available_quantity,
              payload = EXCLUDED.payload
`
	_, err = r.pool.Exec(ctx, q, p.Permalink, p.Name, p.Creator, p.PriceCents, p.Currency, p.AvailableQuantity, payload)
	return err
}

func decodeProduct(payload []byte, available *int64) (*domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	p.AvailableQuantity = available
	return &p, nil
}
