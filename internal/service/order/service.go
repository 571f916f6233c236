// Package order turns a finished cart into an order-creation request and
// fans the per-line results back out: failures are requeued into the cart,
// successes decide the post-purchase redirect.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/pricing"
	orderrepo "creator-checkout/internal/repository/order"
)

type productRepo interface {
	GetByPermalink(ctx context.Context, permalink string) (*domain.Product, error)
	// ReserveStock decrements availability atomically. ok=false means the
	// requested quantity is not available; remaining carries the current
	// stock (nil for unlimited).
	ReserveStock(ctx context.Context, permalink, optionID string, quantity int) (remaining *int64, ok bool, err error)
}

type orderRepo interface {
	Create(ctx context.Context, in orderrepo.CreateOrderInput) error
}

// Tracker receives purchase analytics. Implementations must be non-blocking.
type Tracker interface {
	Beacon(permalink string, usdCents int64)
	Purchase(permalink, currency string, usdCents int64)
}

// LogTracker writes analytics events to the log; the stand-in for the
// third-party beacon until a real sink is wired.
type LogTracker struct {
	Logger *log.Logger
}

// Beacon implements Tracker.
func (t LogTracker) Beacon(permalink string, usdCents int64) {
	t.Logger.Printf("track: beacon permalink=%s usd_cents=%d", permalink, usdCents)
}

// Purchase implements Tracker.
func (t LogTracker) Purchase(permalink, currency string, usdCents int64) {
	t.Logger.Printf("track: purchase permalink=%s currency=%s usd_cents=%d", permalink, currency, usdCents)
}

// Service submits orders. It never retries: a failed call surfaces to the
// payment machine as a cancel.
type Service struct {
	products productRepo
	repo     orderRepo
	track    Tracker
	logger   *log.Logger
}

// New builds the service; tracker may be nil.
func New(products productRepo, repo orderRepo, track Tracker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{products: products, repo: repo, track: track, logger: logger}
}

// BuildLineItems maps cart items to order payload lines. URLParameters is
// serialized to a JSON string here: the order contract predates the
// structured payload and still takes the opaque blob for this one field.
func BuildLineItems(cart *domain.Cart) []domain.LineItemPayload {
	lines := make([]domain.LineItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		_, discount := pricing.DiscountedPrice(cart, item)
		line := domain.LineItemPayload{
			Permalink:         item.Product.Permalink,
			UID:               item.UID(),
			OptionID:          item.OptionID,
			Quantity:          item.Quantity,
			PerceivedPrice:    pricing.PerceivedPrice(cart, item),
			PPPDiscounted:     discount != nil && discount.Type == "ppp",
			PayInInstallments: item.PayInInstallments,
			Recurrence:        item.Recurrence,
			Rent:              item.Rent,
			CallStartTime:     item.CallStartTime,
			Referrer:          item.Referrer,
			AffiliateID:       item.AffiliateID,
			AcceptedOffer:     item.AcceptedOffer,
			BundleProducts:    item.Product.BundleProducts,
		}
		if discount != nil && discount.Type == "code" {
			line.DiscountCode = discount.Code
		}
		if len(item.URLParameters) > 0 {
			if raw, err := json.Marshal(item.URLParameters); err == nil {
				line.URLParameters = string(raw)
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// Submit creates the order: every line is checked against the catalog and
// its stock reserved; lines that no longer fit come back as failures with
// the corrected product snapshot, the rest succeed. Partial failure is a
// result shape, not an error; only transport/storage problems return err.
func (s *Service) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	resp := &domain.OrderResponse{
		OrderID:   uuid.NewString(),
		LineItems: make(map[string]domain.LineItemResult, len(req.LineItems)),
	}

	lines := make([]orderrepo.CreateOrderLine, 0, len(req.LineItems))
	for _, payload := range req.LineItems {
		result, err := s.submitLine(ctx, resp.OrderID, payload)
		if err != nil {
			return nil, err
		}
		resp.LineItems[payload.UID] = result
		lines = append(lines, orderrepo.CreateOrderLine{Payload: payload, Result: result})
	}

	if err := s.repo.Create(ctx, orderrepo.CreateOrderInput{
		OrderID:   resp.OrderID,
		SessionID: req.SessionID,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
		Lines:     lines,
	}); err != nil {
		return nil, err
	}
	s.logger.Printf("order service: created order=%s lines=%d", resp.OrderID, len(lines))
	return resp, nil
}

func (s *Service) submitLine(ctx context.Context, orderID string, payload domain.LineItemPayload) (domain.LineItemResult, error) {
	product, err := s.products.GetByPermalink(ctx, payload.Permalink)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LineItemResult{Success: false, Error: "This product is no longer available."}, nil
		}
		return domain.LineItemResult{}, err
	}

	remaining, ok, err := s.products.ReserveStock(ctx, payload.Permalink, payload.OptionID, payload.Quantity)
	if err != nil {
		return domain.LineItemResult{}, err
	}
	if !ok {
		updated := *product
		updated.AvailableQuantity = remaining
		quantity := 0
		if remaining != nil {
			quantity = int(*remaining)
		}
		return domain.LineItemResult{
			Success:        false,
			UpdatedProduct: &updated,
			Quantity:       quantity,
			Error:          "Sorry, the creator has run out of stock for this item.",
		}, nil
	}

	return domain.LineItemResult{
		Success:        true,
		ContentURL:     product.ContentURL,
		ReceiptURL:     "/receipts/" + orderID,
		BundleProducts: product.BundleProducts,
	}, nil
}

// LineOutcome pairs a cart item with its result, in cart order.
type LineOutcome struct {
	Item   *domain.CartItem
	Result domain.LineItemResult
}

// Reconcile applies an order response to the cart: failed lines stay in the
// cart with the server-corrected snapshot and quantity and a cleared
// accepted offer; succeeded lines leave it. Returns the successes in cart
// order.
func Reconcile(cart *domain.Cart, resp *domain.OrderResponse) []LineOutcome {
	var succeeded []LineOutcome
	var remaining []*domain.CartItem

	for _, item := range cart.Items {
		result, present := resp.LineItems[item.UID()]
		if !present {
			remaining = append(remaining, item)
			continue
		}
		if result.Success {
			succeeded = append(succeeded, LineOutcome{Item: item, Result: result})
			continue
		}
		if result.UpdatedProduct != nil {
			item.Product = *result.UpdatedProduct
		}
		item.Quantity = result.Quantity
		item.AcceptedOffer = nil
		remaining = append(remaining, item)
	}

	cart.Items = remaining
	return succeeded
}

// DecideRedirect picks the post-purchase navigation target. The flow ends in
// a full page navigation, not an in-app route.
func DecideRedirect(succeeded []LineOutcome, anyFailed, buyerLoggedIn bool) domain.Redirect {
	anyTestPurchase := false
	allContent := len(succeeded) > 0
	for _, out := range succeeded {
		if out.Result.TestPurchase {
			anyTestPurchase = true
		}
		if out.Result.ContentURL == "" {
			allContent = false
		}
	}

	if len(succeeded) == 1 && !anyFailed {
		only := succeeded[0]
		if only.Result.ContentURL != "" {
			if len(only.Result.BundleProducts) == 0 || (buyerLoggedIn && !only.Result.TestPurchase) {
				return domain.Redirect{Kind: domain.RedirectContent, URL: only.Result.ContentURL}
			}
		}
	}

	if !anyFailed && allContent && !anyTestPurchase {
		if buyerLoggedIn {
			return domain.Redirect{Kind: domain.RedirectLibrary, URL: "/library"}
		}
		return domain.Redirect{Kind: domain.RedirectTemporaryLibrary, URL: "/library/temporary"}
	}

	return domain.Redirect{Kind: domain.RedirectReceipt}
}

// Track fires analytics for the successes: one purchase event per line with
// the USD-normalized value, and a single beacon for the first
// redirect-eligible line.
func (s *Service) Track(cart *domain.Cart, succeeded []LineOutcome) {
	if s.track == nil {
		return
	}
	beaconFired := false
	for _, out := range succeeded {
		usd := pricing.ConvertToUSD(out.Item, pricing.TotalPrice(cart, out.Item))
		s.track.Purchase(out.Item.Product.Permalink, out.Item.Product.Currency, usd)
		if !beaconFired && out.Result.ContentURL != "" {
			s.track.Beacon(out.Item.Product.Permalink, usd)
			beaconFired = true
		}
	}
}
