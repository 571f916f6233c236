package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/payment"
	cartsvc "creator-checkout/internal/service/cart"
	ordersvc "creator-checkout/internal/service/order"
	surchargesvc "creator-checkout/internal/service/surcharge"
)

// memoryCatalog is an in-memory product repository for tests.
type memoryCatalog map[string]domain.Product

func (c memoryCatalog) GetByPermalink(_ context.Context, permalink string) (*domain.Product, error) {
	p, ok := c[permalink]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := p
	return &clone, nil
}

// memorySnapshots implements the cart snapshot store.
type memorySnapshots map[string][]byte

func (m memorySnapshots) UpsertSnapshot(_ context.Context, sessionID string, snapshot []byte) error {
	m[sessionID] = snapshot
	return nil
}

func (m memorySnapshots) GetSnapshot(_ context.Context, sessionID string) ([]byte, error) {
	snap, ok := m[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snap, nil
}

// stubSubmitter answers Submit with a canned per-UID result map.
type stubSubmitter struct {
	results  map[string]domain.LineItemResult
	err      error
	requests []domain.OrderRequest
}

func (s *stubSubmitter) Submit(_ context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	resp := &domain.OrderResponse{OrderID: "order-1", LineItems: map[string]domain.LineItemResult{}}
	for _, line := range req.LineItems {
		if r, ok := s.results[line.UID]; ok {
			resp.LineItems[line.UID] = r
		} else {
			resp.LineItems[line.UID] = domain.LineItemResult{Success: true}
		}
	}
	return resp, nil
}

func (s *stubSubmitter) Track(*domain.Cart, []ordersvc.LineOutcome) {}

func newTestService(catalog memoryCatalog, submitter *stubSubmitter, siteKey string) *Service {
	carts := cartsvc.New(memorySnapshots{}, nil, nil, 0, time.Hour)
	surcharges := surchargesvc.New(surchargesvc.RateTable{}, nil)
	return New(catalog, carts, submitter, surcharges, nil, nil, siteKey)
}

func fillBuyer(t *testing.T, svc *Service, id string) {
	t.Helper()
	err := svc.UpdateBuyer(context.Background(), id, &payment.ContactFields{Email: "buyer@example.com"}, &payment.Method{Type: "card", CardComplete: true})
	if err != nil {
		t.Fatalf("update buyer: %v", err)
	}
}

func TestSubmit_HappyPathFinishesAndRedirects(t *testing.T) {
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000, ContentURL: "/d/course"}}
	submitter := &stubSubmitter{results: map[string]domain.LineItemResult{
		"course ": {Success: true, ContentURL: "/d/course"},
	}}
	svc := newTestService(catalog, submitter, "")

	sess, err := svc.Create(context.Background(), "", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, ""); err != nil {
		t.Fatalf("add item: %v", err)
	}
	fillBuyer(t, svc, sess.ID())

	if err := svc.Submit(context.Background(), sess.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, err := svc.View(sess.ID())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("expected finished, got %s", view.State.Status)
	}
	if view.Redirect == nil || view.Redirect.Kind != domain.RedirectContent || view.Redirect.URL != "/d/course" {
		t.Fatalf("unexpected redirect %+v", view.Redirect)
	}
	if len(view.Cart.Items) != 0 {
		t.Fatalf("purchased items must leave the cart, got %d", len(view.Cart.Items))
	}
	if len(submitter.requests) != 1 {
		t.Fatalf("expected exactly one order request, got %d", len(submitter.requests))
	}
	if submitter.requests[0].Email != "buyer@example.com" {
		t.Fatalf("order request must carry the buyer email, got %q", submitter.requests[0].Email)
	}
}

func TestSubmit_SurfacesOfferAndWaits(t *testing.T) {
	cs := domain.CrossSell{
		ID:             "cs-1",
		OfferedProduct: domain.Product{Permalink: "brush-pack", PriceCents: 800},
	}
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000, CrossSells: []domain.CrossSell{cs}}}
	submitter := &stubSubmitter{}
	svc := newTestService(catalog, submitter, "")

	sess, _ := svc.Create(context.Background(), "", false)
	if err := svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, ""); err != nil {
		t.Fatalf("add item: %v", err)
	}
	fillBuyer(t, svc, sess.ID())
	if err := svc.Submit(context.Background(), sess.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, _ := svc.View(sess.ID())
	if view.State.Status != payment.StatusOffering {
		t.Fatalf("expected offering, got %s", view.State.Status)
	}
	if view.CurrentOffer == nil || view.CurrentOffer.ID != "cs-1" {
		t.Fatalf("expected the cross-sell surfaced, got %+v", view.CurrentOffer)
	}
	if len(submitter.requests) != 0 {
		t.Fatalf("order must not submit while an offer is pending")
	}

	// Accepting adds the item and, queue drained, the order goes out.
	if err := svc.ResolveOffer(context.Background(), sess.ID(), true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	view, _ = svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("expected finished after acceptance, got %s", view.State.Status)
	}
	if len(submitter.requests) != 1 {
		t.Fatalf("expected one order request, got %d", len(submitter.requests))
	}
	uids := map[string]bool{}
	for _, line := range submitter.requests[0].LineItems {
		uids[line.UID] = true
	}
	if !uids["brush-pack "] || !uids["course "] {
		t.Fatalf("accepted offer must be in the order, got %v", uids)
	}
}

func TestResolveOffer_DeclineNeverReappears(t *testing.T) {
	cs := domain.CrossSell{ID: "cs-1", OfferedProduct: domain.Product{Permalink: "brush-pack"}}
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000, CrossSells: []domain.CrossSell{cs}}}
	submitter := &stubSubmitter{}
	svc := newTestService(catalog, submitter, "")

	sess, _ := svc.Create(context.Background(), "", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, "")
	fillBuyer(t, svc, sess.ID())
	svc.Submit(context.Background(), sess.ID())

	if err := svc.ResolveOffer(context.Background(), sess.ID(), false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	view, _ := svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("declined offer must not block submission, got %s", view.State.Status)
	}
	if len(view.Cart.Items) != 0 && view.Cart.FindItem("brush-pack", "") != nil {
		t.Fatalf("declined offer must not add to the cart")
	}

	// A second resolve has nothing to act on.
	if err := svc.ResolveOffer(context.Background(), sess.ID(), true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a second resolve, got %v", err)
	}
}

func TestResolveOffer_AcceptAfterManualAddDoesNotDuplicate(t *testing.T) {
	cs := domain.CrossSell{
		ID:             "cs-1",
		OfferedProduct: domain.Product{Permalink: "brush-pack", PriceCents: 800},
	}
	catalog := memoryCatalog{
		"course":     {Permalink: "course", PriceCents: 1000, CrossSells: []domain.CrossSell{cs}},
		"brush-pack": {Permalink: "brush-pack", PriceCents: 800},
	}
	submitter := &stubSubmitter{}
	svc := newTestService(catalog, submitter, "")

	sess, _ := svc.Create(context.Background(), "", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, "")
	fillBuyer(t, svc, sess.ID())
	svc.Submit(context.Background(), sess.ID())

	view, _ := svc.View(sess.ID())
	if view.CurrentOffer == nil || view.CurrentOffer.ID != "cs-1" {
		t.Fatalf("setup: expected the cross-sell surfaced, got %+v", view.CurrentOffer)
	}

	// The buyer adds the offered product by hand while the offer is shown.
	if err := svc.AddItem(context.Background(), sess.ID(), "brush-pack", cartsvc.AddParams{Quantity: 1}, ""); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.ResolveOffer(context.Background(), sess.ID(), true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	view, _ = svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("expected finished, got %s", view.State.Status)
	}
	if len(submitter.requests) != 1 {
		t.Fatalf("expected one order request, got %d", len(submitter.requests))
	}
	brushLines := 0
	for _, line := range submitter.requests[0].LineItems {
		if line.UID == "brush-pack " {
			brushLines++
		}
	}
	if brushLines != 1 {
		t.Fatalf("expected one line for brush-pack, got %d", brushLines)
	}
	if len(submitter.requests[0].LineItems) != 2 {
		t.Fatalf("expected course plus brush-pack, got %d lines", len(submitter.requests[0].LineItems))
	}
}

func TestSubmit_RecaptchaRoundTrip(t *testing.T) {
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000}}
	submitter := &stubSubmitter{}
	svc := newTestService(catalog, submitter, "site-key")

	sess, _ := svc.Create(context.Background(), "", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, "")
	fillBuyer(t, svc, sess.ID())
	svc.Submit(context.Background(), sess.ID())

	view, _ := svc.View(sess.ID())
	if view.State.Status != payment.StatusRecaptcha {
		t.Fatalf("expected recaptcha, got %s", view.State.Status)
	}
	if len(submitter.requests) != 0 {
		t.Fatalf("order must wait for the challenge")
	}

	if err := svc.Recaptcha(context.Background(), sess.ID(), "tok", false); err != nil {
		t.Fatalf("recaptcha: %v", err)
	}
	view, _ = svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("expected finished, got %s", view.State.Status)
	}
	if len(submitter.requests) != 1 || submitter.requests[0].RecaptchaToken != "tok" {
		t.Fatalf("order must carry the token, got %+v", submitter.requests)
	}
}

func TestSubmit_PartialFailureKeepsCartAndReceiptRedirect(t *testing.T) {
	stock := int64(0)
	corrected := domain.Product{Permalink: "print", AvailableQuantity: &stock}
	catalog := memoryCatalog{
		"course": {Permalink: "course", PriceCents: 1000, ContentURL: "/d/course"},
		"print":  {Permalink: "print", PriceCents: 2000},
	}
	submitter := &stubSubmitter{results: map[string]domain.LineItemResult{
		"course ": {Success: true, ContentURL: "/d/course"},
		"print ":  {Success: false, UpdatedProduct: &corrected, Quantity: 0},
	}}
	svc := newTestService(catalog, submitter, "")

	sess, _ := svc.Create(context.Background(), "", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, "")
	svc.AddItem(context.Background(), sess.ID(), "print", cartsvc.AddParams{Quantity: 2}, "")
	fillBuyer(t, svc, sess.ID())
	svc.Submit(context.Background(), sess.ID())

	view, _ := svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("partial failure still finishes, got %s", view.State.Status)
	}
	if view.Redirect == nil || view.Redirect.Kind != domain.RedirectReceipt {
		t.Fatalf("partial failure must land on the receipt, got %+v", view.Redirect)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].Product.Permalink != "print" {
		t.Fatalf("failed line must stay in the cart, got %+v", view.Cart.Items)
	}
	if got := view.Cart.Items[0].Product.AvailableQuantity; got == nil || *got != 0 {
		t.Fatalf("kept item must carry the corrected snapshot, got %+v", got)
	}
}

func TestSubmit_TransportFailureCancelsWithoutCharge(t *testing.T) {
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000}}
	submitter := &stubSubmitter{err: errors.New("order backend down")}
	svc := newTestService(catalog, submitter, "")

	sess, _ := svc.Create(context.Background(), "", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 1}, "")
	fillBuyer(t, svc, sess.ID())
	svc.Submit(context.Background(), sess.ID())

	view, _ := svc.View(sess.ID())
	if view.State.Status != payment.StatusCancelled {
		t.Fatalf("expected cancelled after transport failure, got %s", view.State.Status)
	}
	if len(view.Cart.Items) != 1 {
		t.Fatalf("failed submission must keep the cart intact, got %d items", len(view.Cart.Items))
	}

	// The session stays usable: fix nothing, just retry.
	submitter.err = nil
	svc.Submit(context.Background(), sess.ID())
	view, _ = svc.View(sess.ID())
	if view.State.Status != payment.StatusFinished {
		t.Fatalf("retry after failure must succeed, got %s", view.State.Status)
	}
}

func TestCreate_RestoresPersistedCart(t *testing.T) {
	snapshots := memorySnapshots{}
	carts := cartsvc.New(snapshots, nil, nil, 0, time.Hour)
	catalog := memoryCatalog{"course": {Permalink: "course", PriceCents: 1000}}
	svc := New(catalog, carts, &stubSubmitter{}, surchargesvc.New(surchargesvc.RateTable{}, nil), nil, nil, "")

	sess, _ := svc.Create(context.Background(), "sess-1", false)
	svc.AddItem(context.Background(), sess.ID(), "course", cartsvc.AddParams{Quantity: 2}, "")
	carts.Flush("sess-1")

	// A new service instance simulates a process restart.
	svc2 := New(catalog, cartsvc.New(snapshots, nil, nil, 0, time.Hour), &stubSubmitter{}, surchargesvc.New(surchargesvc.RateTable{}, nil), nil, nil, "")
	restored, err := svc2.Create(context.Background(), "sess-1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view, _ := svc2.View(restored.ID())
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].Quantity != 2 {
		t.Fatalf("expected the persisted cart restored, got %+v", view.Cart.Items)
	}
}

func TestAddItem_UnknownPermalink(t *testing.T) {
	svc := newTestService(memoryCatalog{}, &stubSubmitter{}, "")
	sess, _ := svc.Create(context.Background(), "", false)
	if err := svc.AddItem(context.Background(), sess.ID(), "ghost", cartsvc.AddParams{Quantity: 1}, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_UnknownSession(t *testing.T) {
	svc := newTestService(memoryCatalog{}, &stubSubmitter{}, "")
	if _, err := svc.Get("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
