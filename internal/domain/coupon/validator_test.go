package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
)

type mockCouponRepo struct {
	byCode    map[string]*Coupon
	getErr    error
	usage     int64
	usageErr  error
	recordErr error
	recorded  []*Usage
	released  []string
	created   *Coupon
	createErr error
	updated   *Coupon
	perUser   []int
	deletedID string
	topHeader *Coupon
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	m.created = c
	return m.createErr
}

func (m *mockCouponRepo) GetByID(_ context.Context, couponID string) (*Coupon, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, c := range m.byCode {
		if c.ID == couponID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockCouponRepo) GetByCode(_ context.Context, code string) (*Coupon, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) List(_ context.Context, _ Filter, _ paging.Params) ([]Coupon, int64, error) {
	out := make([]Coupon, 0, len(m.byCode))
	for _, c := range m.byCode {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *Coupon) error {
	m.updated = c
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, couponID string) error {
	m.deletedID = couponID
	return nil
}

func (m *mockCouponRepo) TopHeader(_ context.Context, _ time.Time) (*Coupon, error) {
	if m.topHeader == nil {
		return nil, ErrNotFound
	}
	return m.topHeader, nil
}

func (m *mockCouponRepo) CountUsage(_ context.Context, _, _ string) (int64, error) {
	return m.usage, m.usageErr
}

func (m *mockCouponRepo) RecordUsage(_ context.Context, u *Usage, perUser int) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, u)
	m.perUser = append(m.perUser, perUser)
	return nil
}

func (m *mockCouponRepo) ReleaseUsage(_ context.Context, _, orderID string) error {
	m.released = append(m.released, orderID)
	return nil
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	active := &Coupon{
		ID:            "cpn_1",
		Code:          "SAVE20",
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("20"),
		MaxDiscount:   dec("15000"),
		StartDate:     fixedNow.Add(-time.Hour),
		EndDate:       fixedNow.Add(time.Hour),
		ApplicableTo:  ScopeAll,
		UsagePerUser:  1,
		IsActive:      true,
	}
	cart := Cart{Total: dec("100000"), Types: []product.Type{product.TypeCourse}}

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		code       string
		wantAmount string
		wantErr    error
		wantMsg    string
	}{
		{
			name:       "lower-case code is normalized",
			repo:       &mockCouponRepo{byCode: map[string]*Coupon{"SAVE20": active}},
			code:       " save20 ",
			wantAmount: "15000",
		},
		{
			name:    "unknown code",
			repo:    &mockCouponRepo{byCode: map[string]*Coupon{}},
			code:    "BOGUS",
			wantErr: ErrNotFound,
		},
		{
			name:    "already used by buyer",
			repo:    &mockCouponRepo{byCode: map[string]*Coupon{"SAVE20": active}, usage: 1},
			code:    "SAVE20",
			wantErr: &InvalidCouponError{Reason: ReasonExceeded},
		},
		{
			name:    "usage lookup failure",
			repo:    &mockCouponRepo{byCode: map[string]*Coupon{"SAVE20": active}, usageErr: errors.New("db down")},
			code:    "SAVE20",
			wantMsg: "count coupon usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			q, err := v.Validate(context.Background(), tt.code, "usr_1", cart)
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.wantAmount).Equal(q.Discount))
			assert.Equal(t, "usr_1", q.UserID)
		})
	}
}

func TestRepoValidator_RedeemAndRelease(t *testing.T) {
	repo := &mockCouponRepo{}
	v := NewRepoValidator(repo)
	q := &Quote{Coupon: &Coupon{ID: "cpn_1", UsagePerUser: 2}, UserID: "usr_1", Discount: dec("10")}

	require.NoError(t, v.Redeem(context.Background(), q, "ord_1"))
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, []int{2}, repo.perUser)
	assert.Equal(t, "cpn_1", repo.recorded[0].CouponID)
	assert.Equal(t, "ord_1", repo.recorded[0].OrderID)
	assert.NotEmpty(t, repo.recorded[0].ID)

	require.NoError(t, v.Release(context.Background(), q, "ord_1"))
	assert.Equal(t, []string{"ord_1"}, repo.released)
}

func TestRepoValidator_RedeemAnonymousHasNoUserCap(t *testing.T) {
	repo := &mockCouponRepo{}
	v := NewRepoValidator(repo)

	q := &Quote{Coupon: &Coupon{ID: "cpn_1", UsagePerUser: 1}, Discount: dec("10")}
	require.NoError(t, v.Redeem(context.Background(), q, "ord_1"))
	assert.Equal(t, []int{0}, repo.perUser)
}

func TestRepoValidator_RedeemLimitRace(t *testing.T) {
	repo := &mockCouponRepo{recordErr: ErrLimitReached}
	v := NewRepoValidator(repo)

	err := v.Redeem(context.Background(), &Quote{Coupon: &Coupon{ID: "cpn_1"}}, "ord_1")

	var invalid *InvalidCouponError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonExceeded, invalid.Reason)
}
