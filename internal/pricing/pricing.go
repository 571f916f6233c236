// Package pricing computes effective cart-item prices. Everything here is
// pure: the authoritative charge amount is recomputed server-side at order
// creation, these results feed display, payloads and analytics.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"creator-checkout/internal/domain"
)

// BasePrice is the undiscounted unit price: product price plus the selected
// option's delta, or the buyer-entered price for pay-what-you-want items when
// it exceeds that floor.
func BasePrice(item *domain.CartItem) int64 {
	price := item.Product.PriceCents
	if opt := item.Product.Option(item.OptionID); opt != nil {
		price += opt.PriceDiffCents
	}
	if price < 0 {
		price = 0
	}
	return price
}

// IsPWYW reports whether the buyer may set their own price for the item.
func IsPWYW(item *domain.CartItem) bool {
	if item.Product.CustomizablePrice {
		return true
	}
	if opt := item.Product.Option(item.OptionID); opt != nil {
		return opt.CustomizablePrice
	}
	return false
}

// DiscountedPrice resolves the effective unit price of an item: PPP first
// (skipped for zero-price items and when the buyer rejected it), then the
// first applicable discount code. Quantity is not applied here.
func DiscountedPrice(cart *domain.Cart, item *domain.CartItem) (int64, *domain.Discount) {
	price := BasePrice(item)

	var discount *domain.Discount
	if price > 0 && !cart.RejectPppDiscount && item.Product.PPPPercent > 0 {
		pct := item.Product.PPPPercent
		price -= price * int64(pct) / 100
		discount = &domain.Discount{Type: "ppp", PercentOff: &pct}
	}

	if code := matchOfferCode(cart, &item.Product); code != nil {
		switch {
		case code.PercentOff != nil:
			price -= price * int64(*code.PercentOff) / 100
			discount = &domain.Discount{Type: "code", Code: code.Code, PercentOff: code.PercentOff}
		case code.CentsOff != nil:
			price -= *code.CentsOff
			discount = &domain.Discount{Type: "code", Code: code.Code, CentsOff: code.CentsOff}
		}
		if price < 0 {
			price = 0
		}
	}

	if IsPWYW(item) && item.PriceCents > price {
		price = item.PriceCents
	}
	return price, discount
}

// TotalPrice is the discounted unit price multiplied by quantity. The order
// matters: discounts apply to the unit, not the line total.
func TotalPrice(cart *domain.Cart, item *domain.CartItem) int64 {
	price, _ := DiscountedPrice(cart, item)
	return price * int64(item.Quantity)
}

// PerceivedPrice is what the buyer is told they will be charged now: the line
// total scaled by the commission deposit proportion, then by the installment
// first-payment proportion, plus tip.
func PerceivedPrice(cart *domain.Cart, item *domain.CartItem) int64 {
	total := TotalPrice(cart, item)
	if p := item.Product.CommissionDepositPercent; p != nil && *p > 0 && *p < 100 {
		total = total * int64(*p) / 100
	}
	if item.PayInInstallments && item.Product.InstallmentPlan != nil {
		if n := item.Product.InstallmentPlan.NumberOfInstallments; n > 1 {
			total = (total + int64(n) - 1) / int64(n)
		}
	}
	return total + item.TipCents
}

// ConvertToUSD converts an amount in the item's currency to USD cents using
// the product's exchange rate. Never used for the authoritative charge.
func ConvertToUSD(item *domain.CartItem, cents int64) int64 {
	rate := item.Product.ExchangeRate
	if rate == "" || strings.EqualFold(item.Product.Currency, "usd") {
		return cents
	}
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return cents
	}
	return decimal.NewFromInt(cents).Mul(r).Round(0).IntPart()
}

func matchOfferCode(cart *domain.Cart, p *domain.Product) *domain.OfferCode {
	for _, entered := range cart.DiscountCodes {
		for i := range p.OfferCodes {
			if strings.EqualFold(p.OfferCodes[i].Code, entered.Code) {
				return &p.OfferCodes[i]
			}
		}
	}
	return nil
}
