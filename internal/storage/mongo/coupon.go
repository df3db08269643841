package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type couponModel struct {
	ID                      string          `bson:"_id"`
	Code                    string          `bson:"code"`
	Description             string          `bson:"description,omitempty"`
	DiscountType            string          `bson:"discountType"`
	DiscountValue           bson.Decimal128 `bson:"discountValue"`
	MaxDiscount             bson.Decimal128 `bson:"maxDiscount"`
	MinPurchase             bson.Decimal128 `bson:"minPurchase"`
	StartDate               time.Time       `bson:"startDate"`
	EndDate                 time.Time       `bson:"endDate"`
	UsageLimit              int             `bson:"usageLimit"`
	UsedCount               int             `bson:"usedCount"`
	UsagePerUser            int             `bson:"usagePerUser"`
	ApplicableTo            string          `bson:"applicableTo"`
	SpecificProducts        []string        `bson:"specificProducts,omitempty"`
	IsActive                bool            `bson:"isActive"`
	InstallmentEnabled      bool            `bson:"installmentEnabled"`
	InstallmentCount        int             `bson:"installmentCount,omitempty"`
	InstallmentIntervalDays int             `bson:"installmentIntervalDays,omitempty"`
	ShowInTopHeader         bool            `bson:"showInTopHeader"`
	TopHeaderMessage        string          `bson:"topHeaderMessage,omitempty"`
	CreatedAt               time.Time       `bson:"createdAt"`
	UpdatedAt               time.Time       `bson:"updatedAt"`
}

type usageModel struct {
	ID             string          `bson:"_id"`
	Coupon         string          `bson:"coupon"`
	User           string          `bson:"user"`
	Order          string          `bson:"order"`
	DiscountAmount bson.Decimal128 `bson:"discountAmount"`
	UsedAt         time.Time       `bson:"usedAt"`
	// Slot is the 1-based per-user redemption number, 0 when the coupon has
	// no per-user cap.
	Slot int `bson:"slot,omitempty"`
}

func toCouponModel(c *coupon.Coupon) (*couponModel, error) {
	var dc decCodec
	m := &couponModel{
		ID:                      c.ID,
		Code:                    c.Code,
		Description:             c.Description,
		DiscountType:            string(c.DiscountType),
		DiscountValue:           dc.enc(c.DiscountValue),
		MaxDiscount:             dc.enc(c.MaxDiscount),
		MinPurchase:             dc.enc(c.MinPurchase),
		StartDate:               c.StartDate,
		EndDate:                 c.EndDate,
		UsageLimit:              c.UsageLimit,
		UsedCount:               c.UsedCount,
		UsagePerUser:            c.UsagePerUser,
		ApplicableTo:            string(c.ApplicableTo),
		SpecificProducts:        c.SpecificProducts,
		IsActive:                c.IsActive,
		InstallmentEnabled:      c.InstallmentEnabled,
		InstallmentCount:        c.InstallmentCount,
		InstallmentIntervalDays: c.InstallmentIntervalDays,
		ShowInTopHeader:         c.ShowInTopHeader,
		TopHeaderMessage:        c.TopHeaderMessage,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	return m, dc.err
}

func fromCouponModel(m *couponModel) (*coupon.Coupon, error) {
	var dc decCodec
	c := &coupon.Coupon{
		ID:                      m.ID,
		Code:                    m.Code,
		Description:             m.Description,
		DiscountType:            coupon.DiscountType(m.DiscountType),
		DiscountValue:           dc.dec(m.DiscountValue),
		MaxDiscount:             dc.dec(m.MaxDiscount),
		MinPurchase:             dc.dec(m.MinPurchase),
		StartDate:               m.StartDate,
		EndDate:                 m.EndDate,
		UsageLimit:              m.UsageLimit,
		UsedCount:               m.UsedCount,
		UsagePerUser:            m.UsagePerUser,
		ApplicableTo:            coupon.Scope(m.ApplicableTo),
		SpecificProducts:        m.SpecificProducts,
		IsActive:                m.IsActive,
		InstallmentEnabled:      m.InstallmentEnabled,
		InstallmentCount:        m.InstallmentCount,
		InstallmentIntervalDays: m.InstallmentIntervalDays,
		ShowInTopHeader:         m.ShowInTopHeader,
		TopHeaderMessage:        m.TopHeaderMessage,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
	return c, dc.err
}

// Coupons implements coupon.Repository.
type Coupons struct {
	s *Store
}

var _ coupon.Repository = (*Coupons)(nil)

// Coupons returns the coupon repository.
func (s *Store) Coupons() *Coupons { return &Coupons{s: s} }

func (r *Coupons) Create(ctx context.Context, c *coupon.Coupon) error {
	m, err := toCouponModel(c)
	if err != nil {
		return err
	}
	if _, err := r.s.col(colCoupons).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create coupon: %w", dupKey(err, "code"))
	}
	return nil
}

func (r *Coupons) findOne(ctx context.Context, filter bson.M) (*coupon.Coupon, error) {
	var m couponModel
	if err := r.s.col(colCoupons).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get coupon: %w", err)
	}
	return fromCouponModel(&m)
}

func (r *Coupons) GetByID(ctx context.Context, couponID string) (*coupon.Coupon, error) {
	return r.findOne(ctx, bson.M{"_id": couponID})
}

func (r *Coupons) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, bson.M{"code": coupon.NormalizeCode(code)})
}

func (r *Coupons) List(ctx context.Context, f coupon.Filter, p paging.Params) ([]coupon.Coupon, int64, error) {
	filter := bson.M{}
	if f.Search != "" {
		rx := regex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"code": rx},
			bson.M{"description": rx},
		}
	}
	if f.IsActive != nil {
		filter["isActive"] = *f.IsActive
	}

	col := r.s.col(colCoupons)
	cur, err := col.Find(ctx, filter, page(p, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list coupons: %w", err)
	}
	var models []couponModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list coupons: %w", err)
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: count coupons: %w", err)
	}

	out := make([]coupon.Coupon, 0, len(models))
	for i := range models {
		c, err := fromCouponModel(&models[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, nil
}

// Update replaces the coupon definition. usedCount is owned by
// RecordUsage and ReleaseUsage and is left untouched.
func (r *Coupons) Update(ctx context.Context, c *coupon.Coupon) error {
	m, err := toCouponModel(c)
	if err != nil {
		return err
	}
	set := bson.M{
		"code":                    m.Code,
		"description":             m.Description,
		"discountType":            m.DiscountType,
		"discountValue":           m.DiscountValue,
		"maxDiscount":             m.MaxDiscount,
		"minPurchase":             m.MinPurchase,
		"startDate":               m.StartDate,
		"endDate":                 m.EndDate,
		"usageLimit":              m.UsageLimit,
		"usagePerUser":            m.UsagePerUser,
		"applicableTo":            m.ApplicableTo,
		"specificProducts":        m.SpecificProducts,
		"isActive":                m.IsActive,
		"installmentEnabled":      m.InstallmentEnabled,
		"installmentCount":        m.InstallmentCount,
		"installmentIntervalDays": m.InstallmentIntervalDays,
		"showInTopHeader":         m.ShowInTopHeader,
		"topHeaderMessage":        m.TopHeaderMessage,
		"updatedAt":               m.UpdatedAt,
	}
	res, err := r.s.col(colCoupons).UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: update coupon: %w", dupKey(err, "code"))
	}
	if res.MatchedCount == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *Coupons) Delete(ctx context.Context, couponID string) error {
	res, err := r.s.col(colCoupons).DeleteOne(ctx, bson.M{"_id": couponID})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: delete coupon: %w", err)
	}
	if res.DeletedCount == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *Coupons) TopHeader(ctx context.Context, now time.Time) (*coupon.Coupon, error) {
	filter := bson.M{
		"isActive":        true,
		"showInTopHeader": true,
		"startDate":       bson.M{"$lte": now},
		"endDate":         bson.M{"$gte": now},
	}
	var m couponModel
	err := r.s.col(colCoupons).
		FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: top header coupon: %w", err)
	}
	return fromCouponModel(&m)
}

func (r *Coupons) CountUsage(ctx context.Context, couponID, userID string) (int64, error) {
	n, err := r.s.col(colCouponUsages).CountDocuments(ctx, bson.M{"coupon": couponID, "user": userID})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: count coupon usage: %w", err)
	}
	return n, nil
}

func (r *Coupons) RecordUsage(ctx context.Context, u *coupon.Usage, perUser int) error {
	var dc decCodec
	m := &usageModel{
		ID:             u.ID,
		Coupon:         u.CouponID,
		User:           u.UserID,
		Order:          u.OrderID,
		DiscountAmount: dc.enc(u.DiscountAmount),
		UsedAt:         u.UsedAt,
	}
	if dc.err != nil {
		return dc.err
	}
	if err := r.insertUsage(ctx, m, perUser); err != nil {
		return err
	}

	res, err := r.s.col(colCoupons).UpdateOne(ctx,
		bson.M{
			"_id": u.CouponID,
			"$or": bson.A{
				bson.M{"usageLimit": 0},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
			},
		},
		bson.M{"$inc": bson.M{"usedCount": 1}},
	)
	if err == nil && res.MatchedCount > 0 {
		return nil
	}
	// Free the usage slot so the documents match the counter.
	_, _ = r.s.col(colCouponUsages).DeleteOne(ctx, bson.M{"_id": m.ID})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: record coupon usage: %w", err)
	}
	return coupon.ErrLimitReached
}

// insertUsage stores m in the first free per-user slot. The unique
// (coupon, user, slot) index makes concurrent redemptions by the same user
// compete for the same slots, so at most perUser of them succeed.
func (r *Coupons) insertUsage(ctx context.Context, m *usageModel, perUser int) error {
	if perUser <= 0 || m.User == "" {
		if _, err := r.s.col(colCouponUsages).InsertOne(ctx, m); err != nil {
			return fmt.Errorf("extraweb/mongo: insert coupon usage: %w", dupKey(err, "couponUsage"))
		}
		return nil
	}
	for slot := 1; slot <= perUser; slot++ {
		m.Slot = slot
		_, err := r.s.col(colCouponUsages).InsertOne(ctx, m)
		if err == nil {
			return nil
		}
		if !isDupKey(err) {
			return fmt.Errorf("extraweb/mongo: insert coupon usage: %w", err)
		}
	}
	return coupon.ErrLimitReached
}

func (r *Coupons) ReleaseUsage(ctx context.Context, couponID, orderID string) error {
	res, err := r.s.col(colCouponUsages).DeleteOne(ctx, bson.M{"coupon": couponID, "order": orderID})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: release coupon usage: %w", err)
	}
	if res.DeletedCount == 0 {
		return nil
	}
	if _, err := r.s.col(colCoupons).UpdateOne(ctx,
		bson.M{"_id": couponID, "usedCount": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"usedCount": -1}},
	); err != nil {
		return fmt.Errorf("extraweb/mongo: release coupon usage: %w", err)
	}
	return nil
}
