// Package cart owns cart mutation: identity-keyed add-or-update, the cart
// ceiling, and best-effort debounced persistence of cart snapshots.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/url"
	"sync"
	"time"

	"creator-checkout/internal/alerts"
	"creator-checkout/internal/domain"
)

// reservedParams are buy-link query parameters consumed by the checkout flow
// itself; everything else passes through as url_parameters.
var reservedParams = map[string]bool{
	"product":                true,
	"option":                 true,
	"variant":                true,
	"recurrence":             true,
	"quantity":               true,
	"price":                  true,
	"referrer":               true,
	"affiliate_id":           true,
	"recommender_model_name": true,
	"call_start_time":        true,
	"pay_in_installments":    true,
	"rent":                   true,
	"recommended_by":         true,
}

type snapshotRepo interface {
	UpsertSnapshot(ctx context.Context, sessionID string, snapshot []byte) error
	GetSnapshot(ctx context.Context, sessionID string) ([]byte, error)
}

// Service mutates carts and mirrors them to storage. Persistence is a
// debounced best-effort mirror: within the debounce window only the last
// snapshot is written, and a failed write only warns.
type Service struct {
	repo        snapshotRepo
	bus         *alerts.Bus
	logger      *log.Logger
	maxProducts int
	debounce    time.Duration

	mu      sync.Mutex
	pending map[string]*pendingPersist
}

type pendingPersist struct {
	timer    *time.Timer
	snapshot []byte
}

// New builds the service. A zero debounce defaults to 100ms.
func New(repo snapshotRepo, bus *alerts.Bus, logger *log.Logger, maxProducts int, debounce time.Duration) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if maxProducts <= 0 {
		maxProducts = 50
	}
	return &Service{
		repo:        repo,
		bus:         bus,
		logger:      logger,
		maxProducts: maxProducts,
		debounce:    debounce,
		pending:     map[string]*pendingPersist{},
	}
}

// AddParams carries everything a buy link can specify.
type AddParams struct {
	OptionID          string
	Quantity          int
	Recurrence        string
	Rent              bool
	PayInInstallments bool
	PriceCents        int64
	Referrer          string
	AffiliateID       string
	RecommendedBy     string
	RecommenderModel  string
	CallStartTime     *time.Time
	RawQuery          url.Values
}

// AddOrUpdate adds a product to the cart or updates the item with the same
// (permalink, option) identity in place; repeated buy links change quantity
// or option selection instead of duplicating the line. New items are
// prepended. Returns the affected item, or nil when the ceiling dropped it.
func (s *Service) AddOrUpdate(cart *domain.Cart, product domain.Product, p AddParams) *domain.CartItem {
	quantity := clampQuantity(&product, p.OptionID, p.Quantity)

	if existing := cart.FindItem(product.Permalink, p.OptionID); existing != nil {
		existing.Product = product
		existing.Quantity = quantity
		mergeParams(existing, p)
		return existing
	}

	item := &domain.CartItem{
		Product:  product,
		OptionID: p.OptionID,
		Quantity: quantity,
		Referrer: "direct",
	}
	mergeParams(item, p)
	if len(p.RawQuery) > 0 {
		item.URLParameters = passthroughParams(p.RawQuery)
	}

	cart.Items = append([]*domain.CartItem{item}, cart.Items...)
	if dropped := s.enforceCeiling(cart); dropped > 0 {
		if cart.FindItem(product.Permalink, p.OptionID) == nil {
			return nil
		}
	}
	return item
}

// ApplyDiscountCode records a code once; re-entering is a no-op.
func (s *Service) ApplyDiscountCode(cart *domain.Cart, code string, fromURL bool) {
	for _, dc := range cart.DiscountCodes {
		if dc.Code == code {
			return
		}
	}
	cart.DiscountCodes = append(cart.DiscountCodes, domain.DiscountCode{Code: code, FromURL: fromURL})
}

// SchedulePersist snapshots the cart now and (re)arms the debounce timer.
// The snapshot is taken synchronously so later cart mutations by the owner
// cannot race the write.
func (s *Service) SchedulePersist(sessionID string, cart *domain.Cart) {
	snapshot, err := json.Marshal(cart)
	if err != nil {
		s.logger.Printf("cart service: marshal session=%s error=%v", sessionID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[sessionID]; ok {
		p.snapshot = snapshot
		p.timer.Reset(s.debounce)
		return
	}
	p := &pendingPersist{snapshot: snapshot}
	p.timer = time.AfterFunc(s.debounce, func() { s.flush(sessionID) })
	s.pending[sessionID] = p
}

// Flush persists any pending snapshot immediately. Used on shutdown and
// before order submission.
func (s *Service) Flush(sessionID string) {
	s.mu.Lock()
	p, ok := s.pending[sessionID]
	if ok {
		p.timer.Stop()
	}
	s.mu.Unlock()
	if ok {
		s.flush(sessionID)
	}
}

// Load restores a persisted snapshot; a missing snapshot yields an empty cart.
func (s *Service) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	raw, err := s.repo.GetSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.Cart{}, nil
		}
		return nil, err
	}
	cart := &domain.Cart{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (s *Service) flush(sessionID string) {
	s.mu.Lock()
	p, ok := s.pending[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, sessionID)
	snapshot := p.snapshot
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.UpsertSnapshot(ctx, sessionID, snapshot); err != nil {
		s.logger.Printf("cart service: persist session=%s error=%v", sessionID, err)
		if s.bus != nil {
			s.bus.Publish(alerts.LevelWarning, "We couldn't save your cart. It will keep working, but may not survive a reload.")
		}
	}
}

// enforceCeiling keeps at most maxProducts items, dropping from the tail
// (oldest additions) and warning the buyer.
func (s *Service) enforceCeiling(cart *domain.Cart) int {
	if len(cart.Items) <= s.maxProducts {
		return 0
	}
	dropped := len(cart.Items) - s.maxProducts
	cart.Items = cart.Items[:s.maxProducts]
	if s.bus != nil {
		s.bus.Publish(alerts.LevelWarning, "Your cart is full. Some items were removed.")
	}
	return dropped
}

func clampQuantity(product *domain.Product, optionID string, requested int) int {
	if requested < 1 {
		requested = 1
	}
	available := product.AvailableQuantity
	if opt := product.Option(optionID); opt != nil && opt.AvailableQuantity != nil {
		available = opt.AvailableQuantity
	}
	if available != nil && int64(requested) > *available {
		requested = int(*available)
	}
	return requested
}

func mergeParams(item *domain.CartItem, p AddParams) {
	if p.Recurrence != "" {
		item.Recurrence = p.Recurrence
	} else if item.Recurrence == "" {
		item.Recurrence = item.Product.DefaultRecurrence
	}
	if p.Rent {
		item.Rent = true
	}
	if p.PayInInstallments {
		item.PayInInstallments = true
	}
	if p.PriceCents > 0 {
		item.PriceCents = p.PriceCents
	}
	if p.Referrer != "" {
		item.Referrer = p.Referrer
	}
	if p.AffiliateID != "" {
		item.AffiliateID = p.AffiliateID
	}
	if p.RecommendedBy != "" {
		item.RecommendedBy = p.RecommendedBy
	}
	if p.RecommenderModel != "" {
		item.RecommenderModelName = p.RecommenderModel
	}
	if p.CallStartTime != nil {
		item.CallStartTime = p.CallStartTime
	}
}

func passthroughParams(q url.Values) map[string]string {
	out := map[string]string{}
	for key, values := range q {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
