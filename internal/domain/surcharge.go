package domain

// SurchargeBreakdown is the quote for one currency bucket of the cart.
type SurchargeBreakdown struct {
	Currency       string `json:"currency"`
	SubtotalCents  int64  `json:"subtotalCents"`
	TaxCents       int64  `json:"taxCents"`
	SurchargeCents int64  `json:"surchargeCents"`
}

// SurchargeQuote is the per-currency tax/surcharge result used for live
// totals and for the "if this offer is accepted" preview.
type SurchargeQuote struct {
	TaxCents  int64                `json:"taxCents"`
	Breakdown []SurchargeBreakdown `json:"breakdown,omitempty"`
}
