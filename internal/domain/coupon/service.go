package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/id"
)

// Service implements coupon administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, c *Coupon) (*Coupon, error) {
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.ID = id.New(id.Coupon)
	c.UsedCount = 0
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

func applyDefaults(c *Coupon) {
	c.Code = NormalizeCode(c.Code)
	if c.ApplicableTo == "" {
		c.ApplicableTo = ScopeAll
	}
	if c.UsagePerUser == 0 {
		c.UsagePerUser = DefaultUsagePerUser
	}
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, couponID string) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, wrapRepo(err, "get coupon")
	}
	return c, nil
}

// List returns a page of coupons.
func (s *Service) List(ctx context.Context, f Filter, p paging.Params) ([]Coupon, paging.Meta, error) {
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list coupons")
	}
	return items, paging.NewMeta(p, total), nil
}

// Update replaces the editable fields of a coupon via fn and stores it.
// Code uniqueness and usage counters are preserved by the store.
func (s *Service) Update(ctx context.Context, couponID string, fn func(c *Coupon)) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, wrapRepo(err, "get coupon")
	}

	usedCount := c.UsedCount
	fn(c)
	c.ID = couponID
	c.UsedCount = usedCount
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, wrapRepo(err, "update coupon")
	}
	return c, nil
}

// ToggleActive flips the coupon's active flag.
func (s *Service) ToggleActive(ctx context.Context, couponID string) (*Coupon, error) {
	return s.Update(ctx, couponID, func(c *Coupon) { c.IsActive = !c.IsActive })
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, couponID string) error {
	if err := s.repo.Delete(ctx, couponID); err != nil {
		return wrapRepo(err, "delete coupon")
	}
	return nil
}

// TopHeader returns the coupon advertised in the site header, or nil.
func (s *Service) TopHeader(ctx context.Context) (*Coupon, error) {
	c, err := s.repo.TopHeader(ctx, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get top header coupon")
	}
	return c, nil
}
