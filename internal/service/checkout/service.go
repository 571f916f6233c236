// Package checkout owns checkout sessions. A session is the single writer of
// its cart and payment state: every mutation flows through Service methods,
// which run the pure payment reducer and interpret the effects it returns.
package checkout

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"creator-checkout/internal/alerts"
	"creator-checkout/internal/domain"
	"creator-checkout/internal/offers"
	"creator-checkout/internal/payment"
	cartsvc "creator-checkout/internal/service/cart"
	ordersvc "creator-checkout/internal/service/order"
	surchargesvc "creator-checkout/internal/service/surcharge"
)

type productRepo interface {
	GetByPermalink(ctx context.Context, permalink string) (*domain.Product, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error)
	Track(cart *domain.Cart, succeeded []ordersvc.LineOutcome)
}

// Session is one buyer's checkout. All fields are guarded by mu and only
// Service methods touch them.
type Session struct {
	id string

	mu            sync.Mutex
	cart          *domain.Cart
	state         payment.State
	completed     map[string]bool
	currentOffer  *offers.Offer
	buyerLoggedIn bool
	redirect      *domain.Redirect
	response      *domain.OrderResponse
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// View is the read-only snapshot handlers serialize.
type View struct {
	ID            string                `json:"id"`
	Cart          *domain.Cart          `json:"cart"`
	State         payment.State         `json:"state"`
	CurrentOffer  *offers.Offer         `json:"currentOffer,omitempty"`
	Redirect      *domain.Redirect      `json:"redirect,omitempty"`
	OrderResponse *domain.OrderResponse `json:"orderResponse,omitempty"`
}

// Service manages sessions and interprets reducer effects.
type Service struct {
	products   productRepo
	carts      *cartsvc.Service
	orders     orderSubmitter
	surcharges *surchargesvc.Service
	bus        *alerts.Bus
	logger     *log.Logger

	recaptchaSiteKey string

	mu       sync.Mutex
	sessions map[string]*Session
}

// New builds the service.
func New(products productRepo, carts *cartsvc.Service, orders orderSubmitter, surcharges *surchargesvc.Service, bus *alerts.Bus, logger *log.Logger, recaptchaSiteKey string) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		products:         products,
		carts:            carts,
		orders:           orders,
		surcharges:       surcharges,
		bus:              bus,
		logger:           logger,
		recaptchaSiteKey: recaptchaSiteKey,
		sessions:         map[string]*Session{},
	}
}

// Create starts a session, restoring any persisted cart for the id the
// caller supplies (or a fresh id).
func (s *Service) Create(ctx context.Context, sessionID string, buyerLoggedIn bool) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	cart, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		id:            sessionID,
		cart:          cart,
		state:         payment.New(cart.RequiresShipping(), s.recaptchaSiteKey),
		completed:     map[string]bool{},
		buyerLoggedIn: buyerLoggedIn,
	}
	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the live session.
func (s *Service) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// View snapshots the session for rendering.
func (s *Service) View(sessionID string) (View, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return View{
		ID:            sess.id,
		Cart:          sess.cart,
		State:         sess.state,
		CurrentOffer:  sess.currentOffer,
		Redirect:      sess.redirect,
		OrderResponse: sess.response,
	}, nil
}

// AddItem resolves the permalink against the catalog and adds or updates the
// cart item, then mirrors the cart.
func (s *Service) AddItem(ctx context.Context, sessionID, permalink string, params cartsvc.AddParams, discountCode string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	product, err := s.products.GetByPermalink(ctx, permalink)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.carts.AddOrUpdate(sess.cart, *product, params)
	if discountCode != "" {
		s.carts.ApplyDiscountCode(sess.cart, discountCode, true)
	}
	requires := sess.cart.RequiresShipping()
	s.dispatch(ctx, sess, payment.SetFields{RequiresShipping: &requires})
	s.carts.SchedulePersist(sess.id, sess.cart)
	return nil
}

// UpdateBuyer merges contact/payment fields; the cart mirror keeps the email.
func (s *Service) UpdateBuyer(ctx context.Context, sessionID string, contact *payment.ContactFields, method *payment.Method) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.dispatch(ctx, sess, payment.SetFields{Contact: contact, Method: method})
	if contact != nil && contact.Email != "" {
		sess.cart.Email = contact.Email
		s.carts.SchedulePersist(sess.id, sess.cart)
	}
	return nil
}

// Submit runs the machine from the buyer's pay action.
func (s *Service) Submit(ctx context.Context, sessionID string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.dispatch(ctx, sess, payment.Submit{})
	return nil
}

// ResolveOffer accepts or declines the currently surfaced offer. Either way
// the offer id joins the completed set and never reappears this session.
// Eligibility is re-checked against the current cart before applying: the
// buyer can add items while the offer is displayed, and accepting an offer
// whose product is now in the cart must not create a duplicate identity.
func (s *Service) ResolveOffer(ctx context.Context, sessionID string, accept bool) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	offer := sess.currentOffer
	if offer == nil {
		return domain.ErrNotFound
	}
	applicable := false
	for _, o := range offers.Eligible(sess.cart, sess.completed) {
		if o.ID == offer.ID {
			applicable = true
			break
		}
	}
	sess.completed[offer.ID] = true
	if accept && !applicable {
		s.logger.Printf("checkout service: offer=%s no longer applicable, treated as declined", offer.ID)
	}
	if accept && applicable {
		var applyErr error
		switch offer.Kind {
		case offers.KindCrossSell:
			_, applyErr = offers.AcceptCrossSell(sess.cart, *offer)
		case offers.KindUpsell:
			_, applyErr = offers.AcceptUpsell(sess.cart, *offer)
		}
		if applyErr != nil {
			s.logger.Printf("checkout service: apply offer=%s error=%v", offer.ID, applyErr)
		}
		requires := sess.cart.RequiresShipping()
		sess.state.RequiresShipping = requires
		s.carts.SchedulePersist(sess.id, sess.cart)
	}
	sess.currentOffer = nil
	s.dispatch(ctx, sess, payment.OfferResolved{})
	return nil
}

// Recaptcha resumes the machine after the challenge.
func (s *Service) Recaptcha(ctx context.Context, sessionID, token string, cancelled bool) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if cancelled {
		s.dispatch(ctx, sess, payment.RecaptchaCancelled{})
	} else {
		s.dispatch(ctx, sess, payment.RecaptchaSolved{Token: token})
	}
	return nil
}

// Cancel aborts the flow, keeping entered fields.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.dispatch(ctx, sess, payment.Cancel{})
	return nil
}

// dispatch runs the reducer to quiescence: each action may produce effects,
// each effect may feed another action back in. Caller holds sess.mu.
func (s *Service) dispatch(ctx context.Context, sess *Session, action payment.Action) {
	queue := []payment.Action{action}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		state, effects := payment.Reduce(sess.state, next)
		sess.state = state
		for _, effect := range effects {
			queue = append(queue, s.execute(ctx, sess, effect)...)
		}
	}
}

// execute performs one effect and returns any follow-up actions.
func (s *Service) execute(ctx context.Context, sess *Session, effect payment.Effect) []payment.Action {
	switch e := effect.(type) {
	case payment.EvaluateOffers:
		queue := offers.Eligible(sess.cart, sess.completed)
		if len(queue) == 0 {
			return []payment.Action{payment.OffersEvaluated{}}
		}
		head := queue[0]
		return []payment.Action{payment.OffersEvaluated{Offer: &head}}

	case payment.ShowOffer:
		offer := e.Offer
		sess.currentOffer = &offer
		return nil

	case payment.PreloadOfferSurcharge:
		// Eager by contract: the preview must exist before the accept
		// gesture can open a wallet pay sheet.
		cart := copyCart(sess.cart)
		contact := sess.state.Contact
		go s.surcharges.PreloadOfferPreview(context.WithoutCancel(ctx), cart, e.Offer, contact)
		return nil

	case payment.LoadSurcharge:
		cart := copyCart(sess.cart)
		contact := sess.state.Contact
		go func() {
			quote, err := s.surcharges.QuoteCart(context.WithoutCancel(ctx), cart, contact)
			sess.mu.Lock()
			defer sess.mu.Unlock()
			if err != nil {
				s.dispatch(context.Background(), sess, payment.SurchargeQuoteFailed{Message: "We couldn't compute taxes for your address."})
				return
			}
			s.dispatch(context.Background(), sess, payment.SurchargeQuoteLoaded{Quote: quote})
		}()
		return nil

	case payment.ExecuteRecaptcha:
		// Challenge runs on the client; the session just waits for the
		// /recaptcha callback while status is StatusRecaptcha.
		return nil

	case payment.SubmitOrder:
		return s.submitOrder(ctx, sess)

	case payment.PublishAlert:
		if s.bus != nil {
			s.bus.Publish(alerts.LevelError, e.Message)
		}
		return nil
	}
	return nil
}

func (s *Service) submitOrder(ctx context.Context, sess *Session) []payment.Action {
	s.carts.Flush(sess.id)

	req := domain.OrderRequest{
		SessionID:      sess.id,
		Email:          sess.state.Contact.Email,
		FullName:       sess.state.Contact.FullName,
		Country:        sess.state.Contact.Country,
		State:          sess.state.Contact.State,
		Zip:            sess.state.Contact.Zip,
		Address:        sess.state.Contact.Address,
		City:           sess.state.Contact.City,
		RecaptchaToken: sess.state.RecaptchaToken,
		PaymentMethod:  sess.state.Method.Type,
		LineItems:      ordersvc.BuildLineItems(sess.cart),
	}

	resp, err := s.orders.Submit(ctx, req)
	if err != nil {
		s.logger.Printf("checkout service: submit session=%s error=%v", sess.id, err)
		return []payment.Action{payment.OrderFailed{
			Message: "Something went wrong completing your purchase. You have not been charged.",
		}}
	}

	succeeded := ordersvc.Reconcile(sess.cart, resp)
	anyFailed := len(sess.cart.Items) > 0
	redirect := ordersvc.DecideRedirect(succeeded, anyFailed, sess.buyerLoggedIn)
	sess.redirect = &redirect
	sess.response = resp

	s.orders.Track(sess.cart, succeeded)
	s.carts.SchedulePersist(sess.id, sess.cart)

	if anyFailed && s.bus != nil {
		s.bus.Publish(alerts.LevelWarning, "Some items couldn't be purchased and were left in your cart.")
	}
	return []payment.Action{payment.OrderSucceeded{}}
}

func copyCart(cart *domain.Cart) *domain.Cart {
	raw, err := json.Marshal(cart)
	if err != nil {
		return &domain.Cart{}
	}
	copied := &domain.Cart{}
	if err := json.Unmarshal(raw, copied); err != nil {
		return &domain.Cart{}
	}
	return copied
}
