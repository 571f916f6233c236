// Package payment holds the checkout payment state machine. Reduce is pure:
// it never performs I/O, it returns the new state plus the effects the caller
// must execute (show an offer, run recaptcha, submit the order). Results of
// those effects come back in as new actions, so the machine stays
// deterministic and testable without any stubbing.
package payment

import (
	"net/mail"
	"strings"

	"creator-checkout/internal/domain"
	"creator-checkout/internal/offers"
)

// Status is the reducer's discriminant.
type Status string

const (
	StatusInput      Status = "input"
	StatusValidating Status = "validating"
	StatusOffering   Status = "offering"
	StatusRecaptcha  Status = "recaptcha"
	StatusFinished   Status = "finished"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further submit can happen. Cancelled is not
// terminal: it is an editable state, distinguished from input only so
// observers can tell a reset apart from a fresh session.
func (s Status) IsTerminal() bool {
	return s == StatusFinished
}

// SurchargePhase tracks the tax/surcharge quote lifecycle.
type SurchargePhase string

const (
	SurchargeUnloaded SurchargePhase = "unloaded"
	SurchargeLoading  SurchargePhase = "loading"
	SurchargeLoaded   SurchargePhase = "loaded"
)

// ContactFields are the buyer-entered contact and shipping fields.
type ContactFields struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Country  string `json:"country"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// Method describes the selected payment method.
type Method struct {
	Type         string `json:"type"` // "card", "paypal", "wallet"
	CardComplete bool   `json:"cardComplete"`
}

// SurchargeState is the loaded-by-effect quote attached to the state.
type SurchargeState struct {
	Phase SurchargePhase         `json:"phase"`
	Quote *domain.SurchargeQuote `json:"quote,omitempty"`
}

// State is the whole reducer state. It is a value; Reduce never mutates its
// argument.
type State struct {
	Status           Status            `json:"status"`
	Contact          ContactFields     `json:"contact"`
	Method           Method            `json:"method"`
	RequiresShipping bool              `json:"requiresShipping"`
	FieldErrors      map[string]string `json:"fieldErrors,omitempty"`
	RecaptchaSiteKey string            `json:"-"`
	RecaptchaToken   string            `json:"-"`
	Surcharge        SurchargeState    `json:"surcharge"`
	CurrentOfferID   string            `json:"currentOfferId,omitempty"`
}

// New returns the initial state.
func New(requiresShipping bool, recaptchaSiteKey string) State {
	return State{
		Status:           StatusInput,
		RequiresShipping: requiresShipping,
		RecaptchaSiteKey: recaptchaSiteKey,
		Surcharge:        SurchargeState{Phase: SurchargeUnloaded},
	}
}

// Action is the input union of the machine.
type Action interface{ isAction() }

// SetFields merges buyer-entered fields into the state. RequiresShipping is
// updated too when the cart changed (offer acceptance can add a physical
// product).
type SetFields struct {
	Contact          *ContactFields
	Method           *Method
	RequiresShipping *bool
}

// Submit starts validation, either from an explicit button press or a
// programmatic pay trigger.
type Submit struct{}

// OffersEvaluated feeds the queue head back after an EvaluateOffers effect.
// A nil offer means the queue is empty.
type OffersEvaluated struct{ Offer *offers.Offer }

// OfferResolved reports that the current offer was accepted or declined and
// the cart already mutated; the queue must be re-evaluated.
type OfferResolved struct{}

// RecaptchaSolved carries the challenge token.
type RecaptchaSolved struct{ Token string }

// RecaptchaCancelled reports the buyer dismissed the challenge.
type RecaptchaCancelled struct{}

// SurchargeQuoteLoaded feeds a resolved tax/surcharge quote back in.
type SurchargeQuoteLoaded struct{ Quote domain.SurchargeQuote }

// SurchargeQuoteFailed reports a failed quote load.
type SurchargeQuoteFailed struct{ Message string }

// OrderSucceeded reports the submission resolved; redirect handling happens
// outside the machine.
type OrderSucceeded struct{}

// OrderFailed reports a submission exception.
type OrderFailed struct{ Message string }

// Cancel aborts the flow from any non-terminal state.
type Cancel struct{ Message string }

func (SetFields) isAction()            {}
func (Submit) isAction()               {}
func (OffersEvaluated) isAction()      {}
func (OfferResolved) isAction()        {}
func (RecaptchaSolved) isAction()      {}
func (RecaptchaCancelled) isAction()   {}
func (SurchargeQuoteLoaded) isAction() {}
func (SurchargeQuoteFailed) isAction() {}
func (OrderSucceeded) isAction()       {}
func (OrderFailed) isAction()          {}
func (Cancel) isAction()               {}

// Effect is the output command union; the interpreter executes these and
// dispatches the resulting actions.
type Effect interface{ isEffect() }

// EvaluateOffers asks the interpreter to run the offer queue against the
// current cart and respond with OffersEvaluated.
type EvaluateOffers struct{}

// ShowOffer surfaces the queue head to the buyer.
type ShowOffer struct{ Offer offers.Offer }

// PreloadOfferSurcharge eagerly computes the "if accepted" quote so a wallet
// pay sheet invoked from the accept gesture shows correct totals.
type PreloadOfferSurcharge struct{ Offer offers.Offer }

// LoadSurcharge refreshes the quote for the current cart and buyer fields.
type LoadSurcharge struct{}

// ExecuteRecaptcha runs the challenge for the configured site key.
type ExecuteRecaptcha struct{ SiteKey string }

// SubmitOrder fires the order-creation request. Emitted exactly once per
// successful pass, on the transition into StatusFinished.
type SubmitOrder struct{}

// PublishAlert surfaces a human-readable, non-blocking message.
type PublishAlert struct{ Message string }

func (EvaluateOffers) isEffect()        {}
func (ShowOffer) isEffect()             {}
func (PreloadOfferSurcharge) isEffect() {}
func (LoadSurcharge) isEffect()         {}
func (ExecuteRecaptcha) isEffect()      {}
func (SubmitOrder) isEffect()           {}
func (PublishAlert) isEffect()          {}

// Reduce applies one action. Unknown or out-of-phase actions leave the state
// unchanged, so a stale callback can never wedge the machine.
func Reduce(s State, a Action) (State, []Effect) {
	switch a := a.(type) {
	case SetFields:
		if s.Status != StatusInput && s.Status != StatusCancelled {
			return s, nil
		}
		var effects []Effect
		if a.Contact != nil {
			s.Contact = mergeContact(s.Contact, *a.Contact)
			if s.Contact.Country != "" {
				s.Surcharge = SurchargeState{Phase: SurchargeLoading}
				effects = append(effects, LoadSurcharge{})
			}
		}
		if a.Method != nil {
			s.Method = *a.Method
		}
		if a.RequiresShipping != nil {
			s.RequiresShipping = *a.RequiresShipping
		}
		return s, effects

	case Submit:
		if s.Status != StatusInput && s.Status != StatusCancelled {
			return s, nil
		}
		s.Status = StatusValidating
		if errs := validate(s); len(errs) > 0 {
			s.Status = StatusInput
			s.FieldErrors = errs
			return s, nil
		}
		s.FieldErrors = nil
		s.Status = StatusOffering
		return s, []Effect{EvaluateOffers{}}

	case OffersEvaluated:
		if s.Status != StatusOffering {
			return s, nil
		}
		if a.Offer == nil {
			s.CurrentOfferID = ""
			return proceed(s)
		}
		s.CurrentOfferID = a.Offer.ID
		return s, []Effect{ShowOffer{Offer: *a.Offer}, PreloadOfferSurcharge{Offer: *a.Offer}}

	case OfferResolved:
		if s.Status != StatusOffering {
			return s, nil
		}
		s.CurrentOfferID = ""
		return s, []Effect{EvaluateOffers{}}

	case RecaptchaSolved:
		if s.Status != StatusRecaptcha {
			return s, nil
		}
		s.RecaptchaToken = a.Token
		s.Status = StatusFinished
		return s, []Effect{SubmitOrder{}}

	case RecaptchaCancelled:
		// Soft reset: fields kept, no alert.
		if s.Status != StatusRecaptcha {
			return s, nil
		}
		s.Status = StatusInput
		return s, nil

	case SurchargeQuoteLoaded:
		quote := a.Quote
		s.Surcharge = SurchargeState{Phase: SurchargeLoaded, Quote: &quote}
		return s, nil

	case SurchargeQuoteFailed:
		s.Surcharge = SurchargeState{Phase: SurchargeUnloaded}
		return s, []Effect{PublishAlert{Message: a.Message}}

	case OrderSucceeded:
		return s, nil

	case OrderFailed:
		if s.Status.IsTerminal() {
			s.Status = StatusCancelled
		} else if s.Status != StatusCancelled {
			s.Status = StatusCancelled
		}
		return s, []Effect{PublishAlert{Message: a.Message}}

	case Cancel:
		if s.Status.IsTerminal() {
			return s, nil
		}
		s.Status = StatusCancelled
		s.CurrentOfferID = ""
		if a.Message != "" {
			return s, []Effect{PublishAlert{Message: a.Message}}
		}
		return s, nil
	}
	return s, nil
}

// proceed continues the post-offering path: recaptcha when configured and
// not yet solved, otherwise straight to submission.
func proceed(s State) (State, []Effect) {
	if s.RecaptchaSiteKey != "" && s.RecaptchaToken == "" {
		s.Status = StatusRecaptcha
		return s, []Effect{ExecuteRecaptcha{SiteKey: s.RecaptchaSiteKey}}
	}
	s.Status = StatusFinished
	return s, []Effect{SubmitOrder{}}
}

func validate(s State) map[string]string {
	errs := map[string]string{}
	if _, err := mail.ParseAddress(strings.TrimSpace(s.Contact.Email)); err != nil {
		errs["email"] = "valid email required"
	}
	if s.RequiresShipping {
		for field, value := range map[string]string{
			"fullName": s.Contact.FullName,
			"address":  s.Contact.Address,
			"city":     s.Contact.City,
			"country":  s.Contact.Country,
			"zip":      s.Contact.Zip,
		} {
			if strings.TrimSpace(value) == "" {
				errs[field] = "required"
			}
		}
	}
	switch s.Method.Type {
	case "":
		errs["paymentMethod"] = "payment method required"
	case "card":
		if !s.Method.CardComplete {
			errs["card"] = "card details incomplete"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func mergeContact(dst, src ContactFields) ContactFields {
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.FullName != "" {
		dst.FullName = src.FullName
	}
	if src.Address != "" {
		dst.Address = src.Address
	}
	if src.City != "" {
		dst.City = src.City
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.State != "" {
		dst.State = src.State
	}
	if src.Zip != "" {
		dst.Zip = src.Zip
	}
	return dst
}
