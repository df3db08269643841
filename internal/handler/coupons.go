package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/product"
)

type createCouponBody struct {
	Code                    string          `json:"code" validate:"required,min=3,max=20"`
	Description             string          `json:"description"`
	DiscountType            string          `json:"discountType" validate:"required,oneof=percentage fixed fixed_price"`
	DiscountValue           decimal.Decimal `json:"discountValue" validate:"gte=0"`
	MaxDiscount             decimal.Decimal `json:"maxDiscount" validate:"gte=0"`
	MinPurchase             decimal.Decimal `json:"minPurchase" validate:"gte=0"`
	StartDate               time.Time       `json:"startDate" validate:"required"`
	EndDate                 time.Time       `json:"endDate" validate:"required"`
	UsageLimit              int             `json:"usageLimit" validate:"gte=0"`
	UsagePerUser            int             `json:"usagePerUser" validate:"gte=0"`
	ApplicableTo            string          `json:"applicableTo" validate:"omitempty,oneof=all course website software"`
	SpecificProducts        []string        `json:"specificProducts"`
	IsActive                *bool           `json:"isActive"`
	InstallmentEnabled      bool            `json:"installmentEnabled"`
	InstallmentCount        int             `json:"installmentCount" validate:"omitempty,min=1,max=12"`
	InstallmentIntervalDays int             `json:"installmentIntervalDays" validate:"omitempty,min=7,max=90"`
	ShowInTopHeader         bool            `json:"showInTopHeader"`
	TopHeaderMessage        string          `json:"topHeaderMessage"`
}

func (b *createCouponBody) coupon() *coupon.Coupon {
	c := &coupon.Coupon{
		Code:                    b.Code,
		Description:             b.Description,
		DiscountType:            coupon.DiscountType(b.DiscountType),
		DiscountValue:           b.DiscountValue,
		MaxDiscount:             b.MaxDiscount,
		MinPurchase:             b.MinPurchase,
		StartDate:               b.StartDate,
		EndDate:                 b.EndDate,
		UsageLimit:              b.UsageLimit,
		UsagePerUser:            b.UsagePerUser,
		ApplicableTo:            coupon.Scope(b.ApplicableTo),
		SpecificProducts:        b.SpecificProducts,
		IsActive:                true,
		InstallmentEnabled:      b.InstallmentEnabled,
		InstallmentCount:        b.InstallmentCount,
		InstallmentIntervalDays: b.InstallmentIntervalDays,
		ShowInTopHeader:         b.ShowInTopHeader,
		TopHeaderMessage:        b.TopHeaderMessage,
	}
	if b.IsActive != nil {
		c.IsActive = *b.IsActive
	}
	if c.InstallmentEnabled {
		if c.InstallmentCount == 0 {
			c.InstallmentCount = 1
		}
		if c.InstallmentIntervalDays == 0 {
			c.InstallmentIntervalDays = 30
		}
	}
	return c
}

// updateCouponBody holds a partial update; nil fields are left unchanged.
type updateCouponBody struct {
	Code                    *string          `json:"code" validate:"omitempty,min=3,max=20"`
	Description             *string          `json:"description"`
	DiscountType            *string          `json:"discountType" validate:"omitempty,oneof=percentage fixed fixed_price"`
	DiscountValue           *decimal.Decimal `json:"discountValue" validate:"omitempty,gte=0"`
	MaxDiscount             *decimal.Decimal `json:"maxDiscount" validate:"omitempty,gte=0"`
	MinPurchase             *decimal.Decimal `json:"minPurchase" validate:"omitempty,gte=0"`
	StartDate               *time.Time       `json:"startDate"`
	EndDate                 *time.Time       `json:"endDate"`
	UsageLimit              *int             `json:"usageLimit" validate:"omitempty,gte=0"`
	UsagePerUser            *int             `json:"usagePerUser" validate:"omitempty,gte=0"`
	ApplicableTo            *string          `json:"applicableTo" validate:"omitempty,oneof=all course website software"`
	SpecificProducts        []string         `json:"specificProducts"`
	IsActive                *bool            `json:"isActive"`
	InstallmentEnabled      *bool            `json:"installmentEnabled"`
	InstallmentCount        *int             `json:"installmentCount" validate:"omitempty,min=1,max=12"`
	InstallmentIntervalDays *int             `json:"installmentIntervalDays" validate:"omitempty,min=7,max=90"`
	ShowInTopHeader         *bool            `json:"showInTopHeader"`
	TopHeaderMessage        *string          `json:"topHeaderMessage"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (b *updateCouponBody) apply(c *coupon.Coupon) {
	set(&c.Code, b.Code)
	set(&c.Description, b.Description)
	if b.DiscountType != nil {
		c.DiscountType = coupon.DiscountType(*b.DiscountType)
	}
	set(&c.DiscountValue, b.DiscountValue)
	set(&c.MaxDiscount, b.MaxDiscount)
	set(&c.MinPurchase, b.MinPurchase)
	set(&c.StartDate, b.StartDate)
	set(&c.EndDate, b.EndDate)
	set(&c.UsageLimit, b.UsageLimit)
	set(&c.UsagePerUser, b.UsagePerUser)
	if b.ApplicableTo != nil {
		c.ApplicableTo = coupon.Scope(*b.ApplicableTo)
	}
	if b.SpecificProducts != nil {
		c.SpecificProducts = b.SpecificProducts
	}
	set(&c.IsActive, b.IsActive)
	set(&c.InstallmentEnabled, b.InstallmentEnabled)
	set(&c.InstallmentCount, b.InstallmentCount)
	set(&c.InstallmentIntervalDays, b.InstallmentIntervalDays)
	set(&c.ShowInTopHeader, b.ShowInTopHeader)
	set(&c.TopHeaderMessage, b.TopHeaderMessage)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var body createCouponBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.Coupons.Create(r.Context(), body.coupon())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, "Coupon created successfully", couponView(c), nil)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	active, err := boolQuery(r, "isActive")
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	f := coupon.Filter{Search: r.URL.Query().Get("searchTerm"), IsActive: active}
	coupons, meta, err := h.Coupons.List(r.Context(), f, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]couponJSON, 0, len(coupons))
	for i := range coupons {
		out = append(out, couponView(&coupons[i]))
	}
	reply(w, r, http.StatusOK, "Coupons retrieved successfully", out, &meta)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coupons.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Coupon retrieved successfully", couponView(c), nil)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var body updateCouponBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.Coupons.Update(r.Context(), r.PathValue("id"), body.apply)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Coupon updated successfully", couponView(c), nil)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Coupons.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Coupon deleted successfully", nil, nil)
}

func (h *Handler) toggleCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coupons.ToggleActive(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	msg := "Coupon deactivated"
	if c.IsActive {
		msg = "Coupon activated"
	}
	reply(w, r, http.StatusOK, msg, couponView(c), nil)
}

func (h *Handler) topHeaderCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coupons.TopHeader(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if c == nil {
		reply(w, r, http.StatusOK, "No top header coupon", nil, nil)
		return
	}
	reply(w, r, http.StatusOK, "Top header coupon retrieved", couponView(c), nil)
}

type validateCouponBody struct {
	Code        string          `json:"code" validate:"required"`
	CartTotal   decimal.Decimal `json:"cartTotal" validate:"gte=0"`
	ProductType string          `json:"productType" validate:"omitempty,oneof=all course website software"`
	// ProductTypes and ProductIDs describe a mixed cart.
	ProductTypes []string `json:"productTypes" validate:"omitempty,dive,oneof=course website software"`
	ProductIDs   []string `json:"productIds"`
}

type couponQuoteJSON struct {
	Code            string  `json:"code"`
	DiscountType    string  `json:"discountType"`
	DiscountValue   float64 `json:"discountValue"`
	DiscountAmount  float64 `json:"discountAmount"`
	FinalAmount     float64 `json:"finalAmount"`
	Installment     *installmentOfferJSON `json:"installment,omitempty"`
}

type installmentOfferJSON struct {
	Count        int `json:"count"`
	IntervalDays int `json:"intervalDays"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var body validateCouponBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}

	cart := coupon.Cart{Total: body.CartTotal, ProductIDs: body.ProductIDs}
	for _, t := range body.ProductTypes {
		cart.Types = append(cart.Types, product.Type(t))
	}
	if body.ProductType != "" && body.ProductType != string(coupon.ScopeAll) {
		cart.Types = append(cart.Types, product.Type(body.ProductType))
	}

	q, err := h.Validator.Validate(r.Context(), body.Code, principal(r).UserID, cart)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	c := q.Coupon
	out := couponQuoteJSON{
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  c.DiscountValue.InexactFloat64(),
		DiscountAmount: q.Discount.InexactFloat64(),
		FinalAmount:    decimal.Max(body.CartTotal.Sub(q.Discount), decimal.Zero).InexactFloat64(),
	}
	if c.InstallmentEnabled {
		out.Installment = &installmentOfferJSON{
			Count:        c.InstallmentCount,
			IntervalDays: c.InstallmentIntervalDays,
		}
	}
	reply(w, r, http.StatusOK, "Coupon applied successfully", out, nil)
}

type couponJSON struct {
	ID                      string    `json:"id"`
	Code                    string    `json:"code"`
	Description             string    `json:"description,omitempty"`
	DiscountType            string    `json:"discountType"`
	DiscountValue           float64   `json:"discountValue"`
	MaxDiscount             float64   `json:"maxDiscount,omitempty"`
	MinPurchase             float64   `json:"minPurchase"`
	StartDate               time.Time `json:"startDate"`
	EndDate                 time.Time `json:"endDate"`
	UsageLimit              int       `json:"usageLimit,omitempty"`
	UsedCount               int       `json:"usedCount"`
	UsagePerUser            int       `json:"usagePerUser"`
	ApplicableTo            string    `json:"applicableTo"`
	SpecificProducts        []string  `json:"specificProducts,omitempty"`
	IsActive                bool      `json:"isActive"`
	InstallmentEnabled      bool      `json:"installmentEnabled"`
	InstallmentCount        int       `json:"installmentCount,omitempty"`
	InstallmentIntervalDays int       `json:"installmentIntervalDays,omitempty"`
	ShowInTopHeader         bool      `json:"showInTopHeader"`
	TopHeaderMessage        string    `json:"topHeaderMessage,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

func couponView(c *coupon.Coupon) couponJSON {
	return couponJSON{
		ID:                      c.ID,
		Code:                    c.Code,
		Description:             c.Description,
		DiscountType:            string(c.DiscountType),
		DiscountValue:           c.DiscountValue.InexactFloat64(),
		MaxDiscount:             c.MaxDiscount.InexactFloat64(),
		MinPurchase:             c.MinPurchase.InexactFloat64(),
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
}
