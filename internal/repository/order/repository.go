package order

import (
	"context"
	"time"

	"creator-checkout/internal/domain"
)

// CreateOrderInput is one submitted order with its per-line outcomes.
type CreateOrderInput struct {
	OrderID   string
	SessionID string
	Email     string
	CreatedAt time.Time
	Lines     []CreateOrderLine
}

// CreateOrderLine pairs the submitted payload with its result.
type CreateOrderLine struct {
	Payload domain.LineItemPayload
	Result  domain.LineItemResult
}

// Repository persists submitted orders.
type Repository interface {
	Create(ctx context.Context, in CreateOrderInput) error
}
