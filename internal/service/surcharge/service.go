// Package surcharge computes tax/surcharge quotes for the live cart and
// precomputes "if this offer is accepted" previews. Previews must be ready
// before the accept gesture: wallet pay sheets open synchronously and need
// final totals at that moment.
package surcharge

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/offers"
	"creator-checkout/internal/payment"
	"creator-checkout/internal/pricing"
)

// Quoter resolves a quote for buyer fields plus per-currency subtotals.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (domain.SurchargeQuote, error)
}

// QuoteRequest is the surcharge endpoint input.
type QuoteRequest struct {
	Country string       `json:"country"`
	State   string       `json:"state,omitempty"`
	Zip     string       `json:"zip,omitempty"`
	Items   []QuoteItems `json:"items"`
}

// QuoteItems is one currency bucket of the cart.
type QuoteItems struct {
	Currency      string `json:"currency"`
	SubtotalCents int64  `json:"subtotalCents"`
}

// RateTable is the built-in Quoter: flat percent per country code, zero for
// unknown countries. Real tax computation stays out of scope; this is the
// aggregation point a proper engine would plug into.
type RateTable map[string]int

// Quote implements Quoter.
func (t RateTable) Quote(_ context.Context, req QuoteRequest) (domain.SurchargeQuote, error) {
	rate := int64(t[req.Country])
	quote := domain.SurchargeQuote{}
	for _, bucket := range req.Items {
		tax := bucket.SubtotalCents * rate / 100
		quote.TaxCents += tax
		quote.Breakdown = append(quote.Breakdown, domain.SurchargeBreakdown{
			Currency:      bucket.Currency,
			SubtotalCents: bucket.SubtotalCents,
			TaxCents:      tax,
		})
	}
	return quote, nil
}

type preview struct {
	gen   uint64
	quote domain.SurchargeQuote
}

// Service wraps a Quoter with cart bucketing and offer previews. Previews
// have no cancellation: a newer resolution supersedes an older one by
// generation, stale results are dropped silently.
type Service struct {
	quoter Quoter
	logger *log.Logger

	mu       sync.Mutex
	gen      uint64
	previews map[string]preview
}

// New builds the service.
func New(quoter Quoter, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{quoter: quoter, logger: logger, previews: map[string]preview{}}
}

// Quote resolves a raw quote request.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (domain.SurchargeQuote, error) {
	return s.quoter.Quote(ctx, req)
}

// QuoteCart quotes the cart as-is for the given buyer fields.
func (s *Service) QuoteCart(ctx context.Context, cart *domain.Cart, contact payment.ContactFields) (domain.SurchargeQuote, error) {
	return s.quoter.Quote(ctx, buildRequest(cart, contact))
}

// PreloadOfferPreview quotes the cart as it would look with the offer
// accepted and caches the result under the offer id. Safe to call
// concurrently; the last resolved quote wins.
func (s *Service) PreloadOfferPreview(ctx context.Context, cart *domain.Cart, offer offers.Offer, contact payment.ContactFields) {
	simulated, err := simulateAccept(cart, offer)
	if err != nil {
		s.logger.Printf("surcharge service: simulate offer=%s error=%v", offer.ID, err)
		return
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	quote, err := s.quoter.Quote(ctx, buildRequest(simulated, contact))
	if err != nil {
		s.logger.Printf("surcharge service: preview offer=%s error=%v", offer.ID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.previews[offer.ID]; ok && existing.gen > gen {
		return
	}
	s.previews[offer.ID] = preview{gen: gen, quote: quote}
}

// OfferPreview returns the cached "if accepted" quote for the offer.
func (s *Service) OfferPreview(offerID string) (domain.SurchargeQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[offerID]
	return p.quote, ok
}

func buildRequest(cart *domain.Cart, contact payment.ContactFields) QuoteRequest {
	subtotals := map[string]int64{}
	var order []string
	for _, item := range cart.Items {
		currency := item.Product.Currency
		if _, seen := subtotals[currency]; !seen {
			order = append(order, currency)
		}
		subtotals[currency] += pricing.TotalPrice(cart, item)
	}
	req := QuoteRequest{Country: contact.Country, State: contact.State, Zip: contact.Zip}
	for _, currency := range order {
		req.Items = append(req.Items, QuoteItems{Currency: currency, SubtotalCents: subtotals[currency]})
	}
	return req
}

// simulateAccept applies the offer to a deep copy of the cart.
func simulateAccept(cart *domain.Cart, offer offers.Offer) (*domain.Cart, error) {
	raw, err := json.Marshal(cart)
	if err != nil {
		return nil, err
	}
	copied := &domain.Cart{}
	if err := json.Unmarshal(raw, copied); err != nil {
		return nil, err
	}
	switch offer.Kind {
	case offers.KindCrossSell:
		_, err = offers.AcceptCrossSell(copied, offer)
	case offers.KindUpsell:
		_, err = offers.AcceptUpsell(copied, offer)
	}
	if err != nil {
		return nil, err
	}
	return copied, nil
}
