package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/product"
)

// Reason explains why a coupon was rejected.
type Reason string

const (
	ReasonExpired       Reason = "expired"
	ReasonInactive      Reason = "inactive"
	ReasonExceeded      Reason = "exceeded"
	ReasonBelowMinimum  Reason = "below-minimum"
	ReasonNotApplicable Reason = "not-applicable"
)

// InvalidCouponError is returned when a coupon exists but cannot be applied.
type InvalidCouponError struct {
	Reason      Reason
	MinPurchase decimal.Decimal
}

func (e *InvalidCouponError) Error() string {
	switch e.Reason {
	case ReasonExpired:
		return "This coupon has expired or is not yet valid"
	case ReasonInactive:
		return "This coupon is no longer active"
	case ReasonExceeded:
		return "This coupon has reached its usage limit"
	case ReasonBelowMinimum:
		return fmt.Sprintf("Minimum purchase of %s is required for this coupon", e.MinPurchase.StringFixed(2))
	case ReasonNotApplicable:
		return "This coupon is not applicable to the items in your cart"
	default:
		return "invalid coupon"
	}
}

// Is matches other InvalidCouponErrors with the same reason and the
// validation kind.
func (e *InvalidCouponError) Is(target error) bool {
	if target == apperr.ErrValidation {
		return true
	}
	t, ok := target.(*InvalidCouponError)
	return ok && t.Reason == e.Reason
}

// Cart is what a coupon is evaluated against.
type Cart struct {
	Total      decimal.Decimal
	Types      []product.Type
	ProductIDs []string
}

var hundred = decimal.NewFromInt(100)

// Evaluate checks c against cart for a user who already redeemed it
// userUses times, and returns the discount amount.
func Evaluate(c *Coupon, cart Cart, userUses int64, now time.Time) (decimal.Decimal, error) {
	if !c.IsActive {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonInactive}
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonExpired}
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonExceeded}
	}
	if c.UsagePerUser > 0 && userUses >= int64(c.UsagePerUser) {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonExceeded}
	}
	if c.MinPurchase.IsPositive() && cart.Total.LessThan(c.MinPurchase) {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonBelowMinimum, MinPurchase: c.MinPurchase}
	}
	if !c.scopeMatches(cart) {
		return decimal.Zero, &InvalidCouponError{Reason: ReasonNotApplicable}
	}
	return Discount(c, cart.Total), nil
}

// Discount computes the discount c gives on total, rounded to 2 places and
// never below zero or above total.
func Discount(c *Coupon, total decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = total.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	case DiscountFixed:
		amount = decimal.Min(c.DiscountValue, total)
	case DiscountFixedPrice:
		// A fixed price above the cart total makes the whole cart free.
		amount = total.Sub(c.DiscountValue)
		if amount.IsNegative() {
			amount = total
		}
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(total) {
		amount = total
	}
	return amount.Round(2)
}
