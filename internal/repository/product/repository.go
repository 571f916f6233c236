package product

import (
	"context"

	"creator-checkout/internal/domain"
)

// Repository reads the catalog and reserves stock. Products are stored as
// whole documents: the checkout flow always wants the full snapshot.
type Repository interface {
	GetByPermalink(ctx context.Context, permalink string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	// ReserveStock atomically decrements stock: the option's own quantity
	// when it has one, product-level stock otherwise. ok=false means the
	// quantity was not available; remaining is the current stock, nil for
	// unlimited.
	ReserveStock(ctx context.Context, permalink, optionID string, quantity int) (remaining *int64, ok bool, err error)
	Upsert(ctx context.Context, p domain.Product) error
}
