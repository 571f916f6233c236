package stats

import (
	"context"

	"creator-checkout/internal/domain"
)

// Repository reads dashboard rollups.
type Repository interface {
	GetAffiliateStats(ctx context.Context, affiliateID string) (*domain.AffiliateStats, error)
}
