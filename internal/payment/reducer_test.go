package payment

import (
	"testing"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/offers"
)

func validState(requiresShipping bool, siteKey string) State {
	s := New(requiresShipping, siteKey)
	s.Contact.Email = "buyer@example.com"
	s.Method = Method{Type: "card", CardComplete: true}
	if requiresShipping {
		s.Contact.FullName = "Buyer"
		s.Contact.Address = "1 Main St"
		s.Contact.City = "Springfield"
		s.Contact.Country = "US"
		s.Contact.Zip = "12345"
	}
	return s
}

// drive runs the machine to quiescence with an empty offer queue, answering
// EvaluateOffers with a nil head and recording everything else.
func drive(t *testing.T, s State, first Action) (State, []Effect) {
	t.Helper()
	var seen []Effect
	pending := []Action{first}
	for steps := 0; len(pending) > 0; steps++ {
		if steps > 20 {
			t.Fatalf("machine did not quiesce; effects so far: %#v", seen)
		}
		a := pending[0]
		pending = pending[1:]
		var effects []Effect
		s, effects = Reduce(s, a)
		for _, e := range effects {
			seen = append(seen, e)
			if _, ok := e.(EvaluateOffers); ok {
				pending = append(pending, OffersEvaluated{})
			}
		}
	}
	return s, seen
}

func TestSubmit_EmptyQueueReachesFinished(t *testing.T) {
	s, effects := drive(t, validState(false, ""), Submit{})
	if s.Status != StatusFinished {
		t.Fatalf("expected finished, got %s", s.Status)
	}
	submits := 0
	for _, e := range effects {
		switch e.(type) {
		case SubmitOrder:
			submits++
		case ShowOffer:
			t.Fatalf("empty queue must never surface an offer")
		}
	}
	if submits != 1 {
		t.Fatalf("SubmitOrder must fire exactly once, got %d", submits)
	}
}

func TestSubmit_ValidationFailureReturnsToInput(t *testing.T) {
	s := New(true, "")
	s.Contact.Email = "not-an-email"
	s.Method = Method{Type: "card", CardComplete: false}

	s, effects := Reduce(s, Submit{})
	if s.Status != StatusInput {
		t.Fatalf("expected input after failed validation, got %s", s.Status)
	}
	if len(effects) != 0 {
		t.Fatalf("failed validation must emit no effects, got %#v", effects)
	}
	for _, field := range []string{"email", "card", "fullName", "address", "city", "country", "zip"} {
		if s.FieldErrors[field] == "" {
			t.Fatalf("expected field error for %q, got %v", field, s.FieldErrors)
		}
	}
}

func TestSubmit_RecaptchaGate(t *testing.T) {
	s, effects := drive(t, validState(false, "site-key"), Submit{})
	if s.Status != StatusRecaptcha {
		t.Fatalf("expected recaptcha, got %s", s.Status)
	}
	found := false
	for _, e := range effects {
		if ex, ok := e.(ExecuteRecaptcha); ok {
			found = true
			if ex.SiteKey != "site-key" {
				t.Fatalf("unexpected site key %q", ex.SiteKey)
			}
		}
		if _, ok := e.(SubmitOrder); ok {
			t.Fatalf("order must not submit before the challenge resolves")
		}
	}
	if !found {
		t.Fatalf("expected ExecuteRecaptcha effect, got %#v", effects)
	}

	s, effects = Reduce(s, RecaptchaSolved{Token: "tok"})
	if s.Status != StatusFinished || s.RecaptchaToken != "tok" {
		t.Fatalf("expected finished with token, got %s %q", s.Status, s.RecaptchaToken)
	}
	if len(effects) != 1 {
		t.Fatalf("expected a single SubmitOrder, got %#v", effects)
	}
	if _, ok := effects[0].(SubmitOrder); !ok {
		t.Fatalf("expected SubmitOrder, got %#v", effects[0])
	}
}

func TestRecaptchaCancelled_SoftResetKeepsFields(t *testing.T) {
	s, _ := drive(t, validState(false, "site-key"), Submit{})
	s, effects := Reduce(s, RecaptchaCancelled{})
	if s.Status != StatusInput {
		t.Fatalf("expected input, got %s", s.Status)
	}
	if len(effects) != 0 {
		t.Fatalf("soft reset must not alert, got %#v", effects)
	}
	if s.Contact.Email != "buyer@example.com" {
		t.Fatalf("fields must survive the reset, got %+v", s.Contact)
	}
}

func TestOffersEvaluated_SurfacesQueueHead(t *testing.T) {
	s := validState(false, "")
	s, _ = Reduce(s, Submit{})
	if s.Status != StatusOffering {
		t.Fatalf("expected offering, got %s", s.Status)
	}

	offer := offers.Offer{Kind: offers.KindCrossSell, ID: "cs-1", CrossSell: &domain.CrossSell{ID: "cs-1"}}
	s, effects := Reduce(s, OffersEvaluated{Offer: &offer})
	if s.CurrentOfferID != "cs-1" {
		t.Fatalf("expected current offer recorded, got %q", s.CurrentOfferID)
	}
	if len(effects) != 2 {
		t.Fatalf("expected ShowOffer plus surcharge preload, got %#v", effects)
	}
	if show, ok := effects[0].(ShowOffer); !ok || show.Offer.ID != "cs-1" {
		t.Fatalf("expected ShowOffer for cs-1, got %#v", effects[0])
	}
	if _, ok := effects[1].(PreloadOfferSurcharge); !ok {
		t.Fatalf("expected PreloadOfferSurcharge, got %#v", effects[1])
	}

	// Resolution re-evaluates and, with the queue drained, submits.
	s, effects = Reduce(s, OfferResolved{})
	if s.CurrentOfferID != "" {
		t.Fatalf("resolved offer must clear, got %q", s.CurrentOfferID)
	}
	if len(effects) != 1 {
		t.Fatalf("expected EvaluateOffers, got %#v", effects)
	}
	s, effects = Reduce(s, OffersEvaluated{})
	if s.Status != StatusFinished {
		t.Fatalf("expected finished, got %s", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("expected SubmitOrder, got %#v", effects)
	}
}

func TestSetFields_CountryTriggersSurchargeLoad(t *testing.T) {
	s := New(false, "")
	s, effects := Reduce(s, SetFields{Contact: &ContactFields{Country: "DE"}})
	if s.Surcharge.Phase != SurchargeLoading {
		t.Fatalf("expected loading, got %s", s.Surcharge.Phase)
	}
	if len(effects) != 1 {
		t.Fatalf("expected LoadSurcharge, got %#v", effects)
	}

	quote := domain.SurchargeQuote{TaxCents: 107}
	s, _ = Reduce(s, SurchargeQuoteLoaded{Quote: quote})
	if s.Surcharge.Phase != SurchargeLoaded || s.Surcharge.Quote == nil || s.Surcharge.Quote.TaxCents != 107 {
		t.Fatalf("unexpected surcharge state %+v", s.Surcharge)
	}

	s, effects = Reduce(s, SurchargeQuoteFailed{Message: "tax service down"})
	if s.Surcharge.Phase != SurchargeUnloaded {
		t.Fatalf("failed load must unload, got %s", s.Surcharge.Phase)
	}
	if len(effects) != 1 {
		t.Fatalf("expected an alert, got %#v", effects)
	}
}

func TestSetFields_IgnoredMidFlight(t *testing.T) {
	s := validState(false, "")
	s, _ = Reduce(s, Submit{})
	s, effects := Reduce(s, SetFields{Contact: &ContactFields{Email: "other@example.com"}})
	if s.Contact.Email != "buyer@example.com" || s.Status != StatusOffering || len(effects) != 0 {
		t.Fatalf("mid-flight field edits must be no-ops, got %+v %#v", s.Contact, effects)
	}
}

func TestCancel_FromAnyNonTerminalState(t *testing.T) {
	s := validState(false, "site-key")
	s, _ = Reduce(s, Submit{})
	s, _ = Reduce(s, OffersEvaluated{})
	if s.Status != StatusRecaptcha {
		t.Fatalf("setup: expected recaptcha, got %s", s.Status)
	}
	s, effects := Reduce(s, Cancel{Message: "Payment was cancelled."})
	if s.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("expected alert effect, got %#v", effects)
	}

	// Cancelled is editable: a corrected submit goes through.
	s.RecaptchaToken = "tok"
	s, effects = Reduce(s, Submit{})
	if s.Status != StatusOffering {
		t.Fatalf("cancelled must accept a resubmit, got %s", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("expected EvaluateOffers, got %#v", effects)
	}
}

func TestCancel_NoOpWhenFinished(t *testing.T) {
	s, _ := drive(t, validState(false, ""), Submit{})
	s, effects := Reduce(s, Cancel{})
	if s.Status != StatusFinished || len(effects) != 0 {
		t.Fatalf("finished is terminal, got %s %#v", s.Status, effects)
	}
}

func TestOrderFailed_ReturnsToEditableState(t *testing.T) {
	s, _ := drive(t, validState(false, ""), Submit{})
	s, effects := Reduce(s, OrderFailed{Message: "Something went wrong. You have not been charged."})
	if s.Status != StatusCancelled {
		t.Fatalf("expected cancelled after failure, got %s", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("expected alert, got %#v", effects)
	}
}

func TestStaleActions_AreNoOps(t *testing.T) {
	s := New(false, "")
	for _, a := range []Action{
		OffersEvaluated{},
		OfferResolved{},
		RecaptchaSolved{Token: "tok"},
		RecaptchaCancelled{},
	} {
		next, effects := Reduce(s, a)
		if next.Status != StatusInput || len(effects) != 0 {
			t.Fatalf("action %#v must be a no-op from input, got %s %#v", a, next.Status, effects)
		}
	}
}
