package domain

import "time"

// Product is the catalog snapshot a cart item carries. It is denormalized on
// purpose: once a product is in a cart the checkout flow never re-reads the
// catalog until order submission.
type Product struct {
	Permalink         string          `json:"permalink"`
	Name              string          `json:"name"`
	Creator           string          `json:"creator"`
	PriceCents        int64           `json:"priceCents"`
	Currency          string          `json:"currency"`
	ExchangeRate      string          `json:"exchangeRate,omitempty"`
	CustomizablePrice bool            `json:"customizablePrice"`
	PPPPercent        int             `json:"pppPercent,omitempty"`
	AvailableQuantity *int64          `json:"availableQuantity,omitempty"`
	RequiresShipping  bool            `json:"requiresShipping"`
	Options           []ProductOption `json:"options,omitempty"`
	CrossSells        []CrossSell     `json:"crossSells,omitempty"`
	Upsell            *Upsell         `json:"upsell,omitempty"`
	OfferCodes        []OfferCode     `json:"offerCodes,omitempty"`
	Recurrences       []string        `json:"recurrences,omitempty"`
	DefaultRecurrence string          `json:"defaultRecurrence,omitempty"`
	BundleProducts    []BundleProduct `json:"bundleProducts,omitempty"`
	// CommissionDepositPercent, when set, is the share of the price charged
	// up front for commission products.
	CommissionDepositPercent *int             `json:"commissionDepositPercent,omitempty"`
	InstallmentPlan          *InstallmentPlan `json:"installmentPlan,omitempty"`
	ContentURL               string           `json:"contentUrl,omitempty"`
	CreatedAt                time.Time        `json:"createdAt,omitempty"`
}

// ProductOption is a purchasable variant of a product. Option prices are
// deltas on top of the product base price.
type ProductOption struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	PriceDiffCents        int64  `json:"priceDiffCents"`
	AvailableQuantity     *int64 `json:"availableQuantity,omitempty"`
	CustomizablePrice     bool   `json:"customizablePrice,omitempty"`
	UpsellOfferedOptionID string `json:"upsellOfferedOptionId,omitempty"`
}

// Option returns the option with the given id, or nil.
func (p *Product) Option(id string) *ProductOption {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i]
		}
	}
	return nil
}

// CrossSell offers a different product when this product is in the cart.
type CrossSell struct {
	ID              string    `json:"id"`
	OfferedProduct  Product   `json:"offeredProduct"`
	ReplaceSelected bool      `json:"replaceSelectedProducts"`
	Discount        *Discount `json:"discount,omitempty"`
	Text            string    `json:"text,omitempty"`
}

// Upsell offers upgrading an in-cart option to a pricier one. Which option is
// offered is per-option metadata (ProductOption.UpsellOfferedOptionID).
type Upsell struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

// OfferCode is a discount code the product accepts.
type OfferCode struct {
	Code       string `json:"code"`
	PercentOff *int   `json:"percentOff,omitempty"`
	CentsOff   *int64 `json:"centsOff,omitempty"`
	Universal  bool   `json:"universal,omitempty"`
}

// Discount describes a price reduction applied to a cart item.
type Discount struct {
	Type       string `json:"type"` // "code", "ppp" or "offer"
	Code       string `json:"code,omitempty"`
	PercentOff *int   `json:"percentOff,omitempty"`
	CentsOff   *int64 `json:"centsOff,omitempty"`
}

// AcceptedOffer records that a cross-sell or upsell was taken, for backend
// audit and affiliate credit.
type AcceptedOffer struct {
	ID                string    `json:"id"`
	OriginalProductID string    `json:"originalProductId,omitempty"`
	OriginalOptionID  string    `json:"originalOptionId,omitempty"`
	Discount          *Discount `json:"discount,omitempty"`
}

// BundleProduct is a sub-product of a bundle purchase.
type BundleProduct struct {
	Permalink    string            `json:"permalink"`
	Name         string            `json:"name"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// InstallmentPlan splits a product's price into multiple charges.
type InstallmentPlan struct {
	NumberOfInstallments int `json:"numberOfInstallments"`
}
