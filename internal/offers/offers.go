// Package offers derives the upsell/cross-sell queue for a cart and applies
// acceptance semantics. The queue is recomputed from scratch on every
// evaluation; only the completed-offer set is session state.
package offers

import (
	"errors"

	"creator-checkout/internal/domain"
)

// Kind discriminates the offer union.
type Kind string

const (
	KindCrossSell Kind = "cross-sell"
	KindUpsell    Kind = "upsell"
)

// Offer is one entry of the evaluated queue.
type Offer struct {
	Kind      Kind           `json:"kind"`
	ID        string         `json:"id"`
	SourceKey domain.ItemKey `json:"-"`
	// CrossSell is set for KindCrossSell.
	CrossSell *domain.CrossSell `json:"crossSell,omitempty"`
	// Upsell and OfferedOptionID are set for KindUpsell.
	Upsell          *domain.Upsell `json:"upsell,omitempty"`
	OfferedOptionID string         `json:"offeredOptionId,omitempty"`
}

var errOfferItemGone = errors.New("offer source item no longer in cart")

// Eligible returns the ordered queue of offers still applicable to the cart:
// cross-sells first, then upsells, each in cart iteration order, first
// occurrence of an offer id wins. Completed offers never reappear.
func Eligible(cart *domain.Cart, completed map[string]bool) []Offer {
	var queue []Offer
	seen := map[string]bool{}

	for _, item := range cart.Items {
		for i := range item.Product.CrossSells {
			cs := &item.Product.CrossSells[i]
			if completed[cs.ID] || seen[cs.ID] {
				continue
			}
			if cartHasProduct(cart, cs.OfferedProduct.Permalink) {
				continue
			}
			seen[cs.ID] = true
			queue = append(queue, Offer{
				Kind:      KindCrossSell,
				ID:        cs.ID,
				SourceKey: item.Key(),
				CrossSell: cs,
			})
		}
	}

	for _, item := range cart.Items {
		up := item.Product.Upsell
		if up == nil || completed[up.ID] || seen[up.ID] {
			continue
		}
		opt := item.Product.Option(item.OptionID)
		if opt == nil || opt.UpsellOfferedOptionID == "" {
			continue
		}
		if cart.FindItem(item.Product.Permalink, opt.UpsellOfferedOptionID) != nil {
			continue
		}
		seen[up.ID] = true
		queue = append(queue, Offer{
			Kind:            KindUpsell,
			ID:              up.ID,
			SourceKey:       item.Key(),
			Upsell:          up,
			OfferedOptionID: opt.UpsellOfferedOptionID,
		})
	}

	return queue
}

// AcceptCrossSell applies a cross-sell: removes every triggering item when
// the offer replaces selected products, then prepends one item for the
// offered product. The new item inherits url parameters, referrer and the
// installment choice from the first triggering item.
func AcceptCrossSell(cart *domain.Cart, offer Offer) (*domain.CartItem, error) {
	if offer.Kind != KindCrossSell || offer.CrossSell == nil {
		return nil, errors.New("not a cross-sell offer")
	}
	cs := offer.CrossSell

	var triggers []*domain.CartItem
	for _, item := range cart.Items {
		for i := range item.Product.CrossSells {
			if item.Product.CrossSells[i].ID == cs.ID {
				triggers = append(triggers, item)
				break
			}
		}
	}
	if len(triggers) == 0 {
		return nil, errOfferItemGone
	}
	first := triggers[0]

	added := &domain.CartItem{
		Product:           cs.OfferedProduct,
		Quantity:          1,
		Referrer:          first.Referrer,
		URLParameters:     first.URLParameters,
		PayInInstallments: first.PayInInstallments,
		AcceptedOffer: &domain.AcceptedOffer{
			ID:                cs.ID,
			OriginalProductID: first.Product.Permalink,
			Discount:          cs.Discount,
		},
	}

	if cs.ReplaceSelected {
		for _, trig := range triggers {
			cart.RemoveItem(trig.Key())
		}
	}
	cart.Items = append([]*domain.CartItem{added}, cart.Items...)
	return added, nil
}

// AcceptUpsell swaps the triggering item's option to the offered one. The
// buyer-entered price is cleared so the upgraded option's floor applies; the
// original option id is kept on the accepted-offer record for backend credit.
func AcceptUpsell(cart *domain.Cart, offer Offer) (*domain.CartItem, error) {
	if offer.Kind != KindUpsell || offer.Upsell == nil {
		return nil, errors.New("not an upsell offer")
	}
	item := cart.FindItem(offer.SourceKey.Permalink, offer.SourceKey.OptionID)
	if item == nil {
		return nil, errOfferItemGone
	}
	item.AcceptedOffer = &domain.AcceptedOffer{
		ID:               offer.Upsell.ID,
		OriginalOptionID: item.OptionID,
	}
	item.OptionID = offer.OfferedOptionID
	item.PriceCents = 0
	return item, nil
}

func cartHasProduct(cart *domain.Cart, permalink string) bool {
	for _, item := range cart.Items {
		if item.Product.Permalink == permalink {
			return true
		}
	}
	return false
}
