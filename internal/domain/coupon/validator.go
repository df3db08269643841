package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/id"
)

// Quote is a validated, not yet redeemed, coupon application.
type Quote struct {
	Coupon   *Coupon
	UserID   string
	Discount decimal.Decimal
}

// Validator checks coupon codes for a buyer's cart and redeems them once an
// order is placed.
type Validator interface {
	Validate(ctx context.Context, code, userID string, cart Cart) (*Quote, error)
	Redeem(ctx context.Context, q *Quote, orderID string) error
	Release(ctx context.Context, q *Quote, orderID string) error
}

var _ Validator = (*RepoValidator)(nil)

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon, counts the buyer's previous redemptions and
// evaluates it against cart.
func (v *RepoValidator) Validate(ctx context.Context, code, userID string, cart Cart) (*Quote, error) {
	c, err := v.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, wrapRepo(err, "lookup coupon")
	}

	var uses int64
	if userID != "" && c.UsagePerUser > 0 {
		uses, err = v.repo.CountUsage(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon usage")
		}
	}

	discount, err := Evaluate(c, cart, uses, v.now())
	if err != nil {
		return nil, err
	}
	return &Quote{Coupon: c, UserID: userID, Discount: discount}, nil
}

// Redeem records the usage of q for orderID.
func (v *RepoValidator) Redeem(ctx context.Context, q *Quote, orderID string) error {
	u := &Usage{
		ID:             id.New(id.CouponUsage),
		CouponID:       q.Coupon.ID,
		UserID:         q.UserID,
		OrderID:        orderID,
		DiscountAmount: q.Discount,
		UsedAt:         v.now().UTC(),
	}
	perUser := 0
	if q.UserID != "" {
		perUser = q.Coupon.UsagePerUser
	}
	if err := v.repo.RecordUsage(ctx, u, perUser); err != nil {
		if errors.Is(err, ErrLimitReached) {
			return err
		}
		return errors.Wrap(err, "record coupon usage")
	}
	return nil
}

// Release reverts Redeem, used when the order it was redeemed for could not
// be stored.
func (v *RepoValidator) Release(ctx context.Context, q *Quote, orderID string) error {
	if err := v.repo.ReleaseUsage(ctx, q.Coupon.ID, orderID); err != nil {
		return errors.Wrap(err, "release coupon usage")
	}
	return nil
}
