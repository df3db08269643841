package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the cart total, capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, never more than the cart total.
	DiscountFixed DiscountType = "fixed"
	// DiscountFixedPrice makes the cart cost DiscountValue; the discount is the difference.
	DiscountFixedPrice DiscountType = "fixed_price"
)

// Scope restricts which product types a coupon applies to.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeCourse   Scope = "course"
	ScopeWebsite  Scope = "website"
	ScopeSoftware Scope = "software"
)

// Field bounds.
const (
	MinCodeLen             = 3
	MaxCodeLen             = 20
	MaxInstallmentCount    = 12
	MinInstallmentInterval = 7
	MaxInstallmentInterval = 90
	DefaultUsagePerUser    = 1
)

// ErrNotFound is returned when a coupon does not exist.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "coupon not found")

// Coupon is a discount code with validity, usage and applicability rules.
// Zero MaxDiscount, MinPurchase, UsageLimit and UsagePerUser mean "no limit".
type Coupon struct {
	ID               string
	Code             string
	Description      string
	DiscountType     DiscountType
	DiscountValue    decimal.Decimal
	MaxDiscount      decimal.Decimal
	MinPurchase      decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	UsageLimit       int
	UsedCount        int
	UsagePerUser     int
	ApplicableTo     Scope
	SpecificProducts []string
	IsActive         bool

	InstallmentEnabled      bool
	InstallmentCount        int
	InstallmentIntervalDays int
	ShowInTopHeader         bool
	TopHeaderMessage        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usage records one redemption of a coupon by a user for an order.
type Usage struct {
	ID             string
	CouponID       string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the semantic constraints of a coupon definition.
func (c *Coupon) Validate() error {
	var fields []apperr.FieldError
	add := func(path, msg string) {
		fields = append(fields, apperr.FieldError{Path: path, Message: msg})
	}

	if n := len(c.Code); n < MinCodeLen || n > MaxCodeLen {
		add("code", "Coupon Code must be between 3 and 20 characters")
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			add("discountValue", "Discount Value cannot exceed 100 for percentage coupons")
		}
	case DiscountFixed, DiscountFixedPrice:
	default:
		add("discountType", "Discount Type must be one of percentage, fixed, fixed_price")
	}
	if !c.DiscountValue.IsPositive() {
		add("discountValue", "Discount Value must be greater than 0")
	}
	if c.MaxDiscount.IsNegative() {
		add("maxDiscount", "Maximum Discount cannot be negative")
	}
	if c.MinPurchase.IsNegative() {
		add("minPurchase", "Minimum Purchase cannot be negative")
	}
	if !c.EndDate.After(c.StartDate) {
		add("endDate", "End Date must be after Start Date")
	}
	switch c.ApplicableTo {
	case ScopeAll, ScopeCourse, ScopeWebsite, ScopeSoftware:
	default:
		add("applicableTo", "Applicable To must be one of all, course, website, software")
	}
	if c.UsageLimit < 0 || c.UsagePerUser < 0 {
		add("usageLimit", "Usage limits cannot be negative")
	}
	if c.InstallmentEnabled {
		if c.InstallmentCount < 1 || c.InstallmentCount > MaxInstallmentCount {
			add("installmentCount", "Installment Count must be between 1 and 12")
		}
		if c.InstallmentIntervalDays < MinInstallmentInterval || c.InstallmentIntervalDays > MaxInstallmentInterval {
			add("installmentIntervalDays", "Installment Interval must be between 7 and 90 days")
		}
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// Filter narrows coupon listings.
type Filter struct {
	Search   string
	IsActive *bool
}

// Repository provides coupon persistence.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, f Filter, p paging.Params) ([]Coupon, int64, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
	// TopHeader returns the newest active coupon flagged for the site header
	// whose window contains now.
	TopHeader(ctx context.Context, now time.Time) (*Coupon, error)

	// CountUsage returns how many times userID has redeemed couponID.
	CountUsage(ctx context.Context, couponID, userID string) (int64, error)
	// RecordUsage stores u and increments usedCount. It refuses with
	// ErrLimitReached when the global limit is reached or the user already
	// holds perUser redemptions; perUser 0 means no per-user cap. Both
	// checks are atomic with the write.
	RecordUsage(ctx context.Context, u *Usage, perUser int) error
	// ReleaseUsage reverts a RecordUsage for the given order.
	ReleaseUsage(ctx context.Context, couponID, orderID string) error
}

// ErrLimitReached is returned by Repository.RecordUsage when a usage cap was
// hit between validation and redemption.
var ErrLimitReached = &InvalidCouponError{Reason: ReasonExceeded}

// scopeMatches reports whether the cart contains something this coupon
// applies to.
func (c *Coupon) scopeMatches(cart Cart) bool {
	if len(c.SpecificProducts) > 0 {
		for _, id := range cart.ProductIDs {
			for _, allowed := range c.SpecificProducts {
				if id == allowed {
					return true
				}
			}
		}
		return false
	}
	if c.ApplicableTo == "" || c.ApplicableTo == ScopeAll {
		return true
	}
	for _, t := range cart.Types {
		if t == product.Type(c.ApplicableTo) {
			return true
		}
	}
	return false
}

// wrapRepo annotates a repository error unless it is one of ours.
func wrapRepo(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}
