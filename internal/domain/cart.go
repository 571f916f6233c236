package domain

import "time"

// ItemKey identifies a cart item: one product+option pair per cart.
type ItemKey struct {
	Permalink string
	OptionID  string
}

// CartItem is one purchasable line in the cart.
type CartItem struct {
	Product              Product           `json:"product"`
	OptionID             string            `json:"optionId,omitempty"`
	Quantity             int               `json:"quantity"`
	Recurrence           string            `json:"recurrence,omitempty"`
	Rent                 bool              `json:"rent,omitempty"`
	CallStartTime        *time.Time        `json:"callStartTime,omitempty"`
	PayInInstallments    bool              `json:"payInInstallments,omitempty"`
	Referrer             string            `json:"referrer"`
	URLParameters        map[string]string `json:"urlParameters,omitempty"`
	RecommendedBy        string            `json:"recommendedBy,omitempty"`
	RecommenderModelName string            `json:"recommenderModelName,omitempty"`
	AffiliateID          string            `json:"affiliateId,omitempty"`
	// PriceCents is the buyer-entered price for pay-what-you-want items;
	// zero means "use the resolved price".
	PriceCents    int64          `json:"priceCents,omitempty"`
	TipCents      int64          `json:"tipCents,omitempty"`
	AcceptedOffer *AcceptedOffer `json:"acceptedOffer,omitempty"`
}

// Key returns the identity key of the item.
func (i *CartItem) Key() ItemKey {
	return ItemKey{Permalink: i.Product.Permalink, OptionID: i.OptionID}
}

// UID is the composite line-item id used in order payloads and responses.
// An item without an option keeps the trailing space after the permalink.
func (i *CartItem) UID() string {
	return i.Product.Permalink + " " + i.OptionID
}

// DiscountCode is an entered or URL-carried discount code.
type DiscountCode struct {
	Code    string `json:"code"`
	FromURL bool   `json:"fromUrl"`
}

// GiftInfo carries gift purchase details for the whole cart.
type GiftInfo struct {
	RecipientEmail string `json:"recipientEmail"`
	Note           string `json:"note,omitempty"`
}

// Cart is the single source of truth for what is being bought. Newly added
// items are prepended, so Items is most-recent-first.
type Cart struct {
	Items             []*CartItem    `json:"items"`
	DiscountCodes     []DiscountCode `json:"discountCodes,omitempty"`
	RejectPppDiscount bool           `json:"rejectPppDiscount,omitempty"`
	Email             string         `json:"email,omitempty"`
	ReturnURL         string         `json:"returnUrl,omitempty"`
	Gift              *GiftInfo      `json:"gift,omitempty"`
}

// FindItem returns the item with the exact identity key, or nil. No fuzzy
// matching: "prod" with option "a" and "prod" without an option are distinct.
func (c *Cart) FindItem(permalink, optionID string) *CartItem {
	for _, it := range c.Items {
		if it.Product.Permalink == permalink && it.OptionID == optionID {
			return it
		}
	}
	return nil
}

// RemoveItem deletes the item with the given key, preserving order.
func (c *Cart) RemoveItem(key ItemKey) bool {
	for idx, it := range c.Items {
		if it.Key() == key {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// RequiresShipping reports whether any item needs shipping fields collected.
func (c *Cart) RequiresShipping() bool {
	for _, it := range c.Items {
		if it.Product.RequiresShipping {
			return true
		}
	}
	return false
}
