package surcharge

import (
	"context"
	"testing"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/offers"
	"creator-checkout/internal/payment"
)

func TestRateTable_Quote(t *testing.T) {
	table := RateTable{"US": 7, "GB": 20}
	quote, err := table.Quote(context.Background(), QuoteRequest{
		Country: "US",
		Items: []QuoteItems{
			{Currency: "usd", SubtotalCents: 1000},
			{Currency: "eur", SubtotalCents: 2000},
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.TaxCents != 210 {
		t.Fatalf("expected 70+140=210, got %d", quote.TaxCents)
	}
	if len(quote.Breakdown) != 2 || quote.Breakdown[0].TaxCents != 70 {
		t.Fatalf("unexpected breakdown %+v", quote.Breakdown)
	}

	// Unknown countries quote zero rather than erroring.
	quote, err = table.Quote(context.Background(), QuoteRequest{
		Country: "XX",
		Items:   []QuoteItems{{Currency: "usd", SubtotalCents: 1000}},
	})
	if err != nil || quote.TaxCents != 0 {
		t.Fatalf("expected zero tax for unknown country, got %d %v", quote.TaxCents, err)
	}
}

func TestQuoteCart_BucketsByCurrency(t *testing.T) {
	svc := New(RateTable{"US": 10}, nil)
	cart := &domain.Cart{Items: []*domain.CartItem{
		{Product: domain.Product{Permalink: "a", Currency: "usd", PriceCents: 500}, Quantity: 2},
		{Product: domain.Product{Permalink: "b", Currency: "eur", PriceCents: 300}, Quantity: 1},
		{Product: domain.Product{Permalink: "c", Currency: "usd", PriceCents: 100}, Quantity: 1},
	}}

	quote, err := svc.QuoteCart(context.Background(), cart, payment.ContactFields{Country: "US"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(quote.Breakdown) != 2 {
		t.Fatalf("expected 2 currency buckets, got %+v", quote.Breakdown)
	}
	usd := quote.Breakdown[0]
	if usd.Currency != "usd" || usd.SubtotalCents != 1100 {
		t.Fatalf("unexpected usd bucket %+v", usd)
	}
	if quote.TaxCents != 110+30 {
		t.Fatalf("unexpected tax %d", quote.TaxCents)
	}
}

func TestPreloadOfferPreview_QuotesSimulatedCart(t *testing.T) {
	svc := New(RateTable{"US": 10}, nil)
	cs := domain.CrossSell{
		ID:             "cs-1",
		OfferedProduct: domain.Product{Permalink: "brush-pack", Currency: "usd", PriceCents: 800},
	}
	cart := &domain.Cart{Items: []*domain.CartItem{
		{
			Product:  domain.Product{Permalink: "course", Currency: "usd", PriceCents: 1000, CrossSells: []domain.CrossSell{cs}},
			Quantity: 1,
		},
	}}
	offer := offers.Offer{Kind: offers.KindCrossSell, ID: "cs-1", CrossSell: &cs}

	svc.PreloadOfferPreview(context.Background(), cart, offer, payment.ContactFields{Country: "US"})

	quote, ok := svc.OfferPreview("cs-1")
	if !ok {
		t.Fatalf("expected a cached preview")
	}
	// 10% of 1000+800.
	if quote.TaxCents != 180 {
		t.Fatalf("expected tax on the simulated cart, got %d", quote.TaxCents)
	}

	// The live cart is untouched by the simulation.
	if len(cart.Items) != 1 {
		t.Fatalf("preview must not mutate the cart, got %d items", len(cart.Items))
	}
}

func TestOfferPreview_MissWhenNotPreloaded(t *testing.T) {
	svc := New(RateTable{}, nil)
	if _, ok := svc.OfferPreview("never-seen"); ok {
		t.Fatalf("expected a cache miss")
	}
}

type failingQuoter struct{}

func (failingQuoter) Quote(context.Context, QuoteRequest) (domain.SurchargeQuote, error) {
	return domain.SurchargeQuote{}, context.DeadlineExceeded
}

func TestPreloadOfferPreview_FailureLeavesNoEntry(t *testing.T) {
	svc := New(failingQuoter{}, nil)
	cs := domain.CrossSell{ID: "cs-1", OfferedProduct: domain.Product{Permalink: "x"}}
	cart := &domain.Cart{Items: []*domain.CartItem{
		{Product: domain.Product{Permalink: "a", CrossSells: []domain.CrossSell{cs}}, Quantity: 1},
	}}
	svc.PreloadOfferPreview(context.Background(), cart, offers.Offer{Kind: offers.KindCrossSell, ID: "cs-1", CrossSell: &cs}, payment.ContactFields{})
	if _, ok := svc.OfferPreview("cs-1"); ok {
		t.Fatalf("failed preview must not be cached")
	}
}
