package domain

import "time"

// LineItemPayload is one line of an order-creation request. Everything is
// structured except URLParameters, which stays a JSON-encoded string: the
// receiving contract predates the structured payload and still expects the
// opaque blob. Keep it that way.
type LineItemPayload struct {
	Permalink         string          `json:"permalink"`
	UID               string          `json:"uid"`
	OptionID          string          `json:"optionId,omitempty"`
	Quantity          int             `json:"quantity"`
	PerceivedPrice    int64           `json:"perceivedPriceCents"`
	DiscountCode      string          `json:"discountCode,omitempty"`
	PPPDiscounted     bool            `json:"pppDiscounted,omitempty"`
	PayInInstallments bool            `json:"payInInstallments,omitempty"`
	Recurrence        string          `json:"recurrence,omitempty"`
	Rent              bool            `json:"rent,omitempty"`
	CallStartTime     *time.Time      `json:"callStartTime,omitempty"`
	Referrer          string          `json:"referrer,omitempty"`
	AffiliateID       string          `json:"affiliateId,omitempty"`
	AcceptedOffer     *AcceptedOffer  `json:"acceptedOffer,omitempty"`
	BundleProducts    []BundleProduct `json:"bundleProducts,omitempty"`
	URLParameters     string          `json:"urlParameters,omitempty"`
}

// OrderRequest is the full order-creation request.
type OrderRequest struct {
	SessionID      string            `json:"sessionId"`
	Email          string            `json:"email"`
	FullName       string            `json:"fullName,omitempty"`
	Country        string            `json:"country,omitempty"`
	State          string            `json:"state,omitempty"`
	Zip            string            `json:"zip,omitempty"`
	Address        string            `json:"address,omitempty"`
	City           string            `json:"city,omitempty"`
	RecaptchaToken string            `json:"recaptchaToken,omitempty"`
	PaymentMethod  string            `json:"paymentMethod,omitempty"`
	LineItems      []LineItemPayload `json:"lineItems"`
}

// LineItemResult is the per-line outcome of an order. On failure
// UpdatedProduct carries the server-corrected snapshot (stock, price) so the
// item can be requeued for retry.
type LineItemResult struct {
	Success        bool            `json:"success"`
	ContentURL     string          `json:"contentUrl,omitempty"`
	ReceiptURL     string          `json:"receiptUrl,omitempty"`
	UpdatedProduct *Product        `json:"updatedProduct,omitempty"`
	Quantity       int             `json:"quantity,omitempty"`
	BundleProducts []BundleProduct `json:"bundleProducts,omitempty"`
	TestPurchase   bool            `json:"testPurchase,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// OrderResponse is keyed by line-item UID.
type OrderResponse struct {
	OrderID        string                    `json:"orderId"`
	LineItems      map[string]LineItemResult `json:"lineItems"`
	OfferCodes     []OfferCode               `json:"offerCodes,omitempty"`
	CanBuyerSignUp bool                      `json:"canBuyerSignUp"`
}

// RedirectKind says where the buyer lands after submission.
type RedirectKind string

const (
	RedirectContent          RedirectKind = "content"
	RedirectLibrary          RedirectKind = "library"
	RedirectReceipt          RedirectKind = "receipt"
	RedirectTemporaryLibrary RedirectKind = "temporary_library"
)

// Redirect is the post-purchase navigation decision.
type Redirect struct {
	Kind RedirectKind `json:"kind"`
	URL  string       `json:"url,omitempty"`
}

// AffiliateStats is the per-affiliate sales rollup shown on dashboards.
type AffiliateStats struct {
	AffiliateID string `json:"affiliateId"`
	SalesCents  int64  `json:"salesCents"`
	SalesCount  int64  `json:"salesCount"`
}
