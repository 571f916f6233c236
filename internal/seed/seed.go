package seed

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"creator-checkout/internal/domain"
	productrepo "creator-checkout/internal/repository/product"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

// Apply inserts a demo catalog for manual testing. Idempotent: products are
// upserted by permalink.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger) error {
	repo := productrepo.NewPostgres(pool, logger)

	products := []domain.Product{
		{
			Permalink:  "watercolor-basics",
			Name:       "Watercolor Basics",
			Creator:    "inkandwash",
			PriceCents: 1500,
			Currency:   "USD",
			ContentURL: "/content/watercolor-basics",
			Options: []domain.ProductOption{
				{ID: "ebook", Name: "E-book only", PriceDiffCents: 0, UpsellOfferedOptionID: "ebook-video"},
				{ID: "ebook-video", Name: "E-book + video lessons", PriceDiffCents: 2000},
			},
			Upsell: &domain.Upsell{ID: "watercolor-upgrade", Text: "Add 4 hours of video lessons?"},
			CrossSells: []domain.CrossSell{
				{
					ID:   "brush-pack-offer",
					Text: "Buyers also love the digital brush pack.",
					OfferedProduct: domain.Product{
						Permalink:  "brush-pack",
						Name:       "Digital Brush Pack",
						Creator:    "inkandwash",
						PriceCents: 900,
						Currency:   "USD",
						ContentURL: "/content/brush-pack",
					},
					Discount: &domain.Discount{Type: "offer", PercentOff: intPtr(20)},
				},
			},
			OfferCodes: []domain.OfferCode{
				{Code: "SAVE10", PercentOff: intPtr(10)},
			},
		},
		{
			Permalink:  "brush-pack",
			Name:       "Digital Brush Pack",
			Creator:    "inkandwash",
			PriceCents: 900,
			Currency:   "USD",
			ContentURL: "/content/brush-pack",
		},
		{
			Permalink:         "studio-print",
			Name:              "Signed Studio Print",
			Creator:           "inkandwash",
			PriceCents:        4500,
			Currency:          "USD",
			RequiresShipping:  true,
			AvailableQuantity: int64Ptr(25),
		},
		{
			Permalink:         "name-your-price-zine",
			Name:              "Name Your Price Zine",
			Creator:           "inkandwash",
			PriceCents:        500,
			Currency:          "USD",
			CustomizablePrice: true,
			ContentURL:        "/content/name-your-price-zine",
		},
	}

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Permalink, err)
		}
	}
	return nil
}
