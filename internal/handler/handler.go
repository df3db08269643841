// Package handler serves the ExtraWeb REST API under /api/v1.
//
// Handlers decode and validate requests, call the domain services and write
// the {success, message, data, meta} envelope. Every error goes through
// writeErr, which maps domain error kinds to status codes.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/customization"
	"github.com/xenking/extraweb/internal/domain/notification"
	"github.com/xenking/extraweb/internal/domain/order"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/stats"
	"github.com/xenking/extraweb/internal/domain/testimonial"
	"github.com/xenking/extraweb/pkg/httpmiddleware"
)

// Orders is the order service.
type Orders interface {
	Create(ctx context.Context, in order.CreateInput) (*order.Order, error)
	SubmitInstallment(ctx context.Context, orderID, userID string, n int, d order.PaymentDetails) (*order.Order, error)
	ApproveInstallment(ctx context.Context, orderID string, n int, status order.InstallmentStatus) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status order.PaymentStatus, transactionID string) (*order.Order, error)
	ListMine(ctx context.Context, userID string, p paging.Params) ([]order.Order, paging.Meta, error)
	ListAll(ctx context.Context, status string, p paging.Params) ([]order.Order, paging.Meta, error)
	GetMine(ctx context.Context, orderID, userID string) (*order.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// Coupons is the coupon administration service.
type Coupons interface {
	Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error)
	Get(ctx context.Context, couponID string) (*coupon.Coupon, error)
	List(ctx context.Context, f coupon.Filter, p paging.Params) ([]coupon.Coupon, paging.Meta, error)
	Update(ctx context.Context, couponID string, fn func(c *coupon.Coupon)) (*coupon.Coupon, error)
	ToggleActive(ctx context.Context, couponID string) (*coupon.Coupon, error)
	Delete(ctx context.Context, couponID string) error
	TopHeader(ctx context.Context) (*coupon.Coupon, error)
}

// CouponValidator quotes a coupon for a cart.
type CouponValidator interface {
	Validate(ctx context.Context, code, userID string, cart coupon.Cart) (*coupon.Quote, error)
}

// Testimonials is the testimonial service.
type Testimonials interface {
	Create(ctx context.Context, t *testimonial.Testimonial) error
	List(ctx context.Context, f testimonial.Filter, p paging.Params) ([]testimonial.Testimonial, paging.Meta, error)
	Public(ctx context.Context, t testimonial.Type) ([]testimonial.Testimonial, error)
	Get(ctx context.Context, testimonialID string) (*testimonial.Testimonial, error)
	Update(ctx context.Context, testimonialID string, fn func(t *testimonial.Testimonial)) (*testimonial.Testimonial, error)
	SetStatus(ctx context.Context, testimonialID string, status testimonial.Status) (*testimonial.Testimonial, error)
	ToggleFeatured(ctx context.Context, testimonialID string) (*testimonial.Testimonial, error)
	Delete(ctx context.Context, testimonialID string) error
}

// Customizations is the customization request service.
type Customizations interface {
	Create(ctx context.Context, in customization.CreateInput) (*customization.Request, error)
	ListMine(ctx context.Context, userID string, status customization.Status, p paging.Params) ([]customization.Request, paging.Meta, error)
	ListAll(ctx context.Context, f customization.Filter, p paging.Params) ([]customization.Request, paging.Meta, customization.StatusCounts, error)
	Get(ctx context.Context, requestID, userID string) (*customization.Request, error)
	AddItems(ctx context.Context, requestID, userID string, items []customization.Item) (*customization.Request, error)
	ToggleItem(ctx context.Context, requestID string, n int, completed bool, note string) (*customization.Request, error)
	Update(ctx context.Context, requestID string, in customization.UpdateInput) (*customization.Request, error)
	CompleteAll(ctx context.Context, requestID string) (*customization.Request, error)
}

// Stats is the dashboard service.
type Stats interface {
	Dashboard(ctx context.Context) *stats.Dashboard
	Reset(ctx context.Context) (*product.ResetResult, error)
}

// Notifications lists and acknowledges notifications.
type Notifications interface {
	ListForUser(ctx context.Context, userID string, p paging.Params) ([]notification.Notification, paging.Meta, error)
	ListForAdmin(ctx context.Context, p paging.Params) ([]notification.Notification, paging.Meta, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

// Verifier authenticates bearer tokens.
type Verifier interface {
	Verify(raw string) (auth.Principal, error)
}

// Config holds non-dependency handler settings.
type Config struct {
	// Production hides error stacks.
	Production bool
	// OrderWrites limits order creation and installment submissions per user.
	OrderWrites httpmiddleware.RateLimitConfig
}

// Deps are the services the handler delegates to.
type Deps struct {
	Orders        Orders
	Coupons       Coupons
	Validator     CouponValidator
	Testimonials  Testimonials
	Customization Customizations
	Stats         Stats
	Notifications Notifications
	Tokens        Verifier
}

// Handler serves the API.
type Handler struct {
	Deps
	cfg      Config
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{
		Deps:     deps,
		cfg:      cfg,
		validate: newValidator(),
		now:      time.Now,
	}
}

// Routes registers all API routes on a new mux. ctx bounds the background
// cleanup of the order-write limiter.
func (h *Handler) Routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	const v1 = "/api/v1"

	handle := func(pattern string, fn http.HandlerFunc, mws ...httpmiddleware.Middleware) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+v1+path, httpmiddleware.Routed(httpmiddleware.Wrap(fn, mws...)))
	}

	user := h.authenticate()
	admin := h.authenticate(auth.RoleAdmin)
	optional := h.optionalAuth()

	orderCfg := h.cfg.OrderWrites
	orderCfg.KeyFunc = principalKey
	if orderCfg.Message == "" {
		orderCfg.Message = "Too many order requests, please try again later."
	}
	var orderLimit httpmiddleware.Middleware = func(next http.Handler) http.Handler { return next }
	if orderCfg.Max > 0 && orderCfg.Window > 0 {
		orderLimit = httpmiddleware.RateLimitWithCleanup(ctx, orderCfg)
	}

	// Orders.
	handle("POST /orders", h.createOrder, user, orderLimit)
	handle("GET /orders/my", h.listMyOrders, user)
	handle("GET /orders/my/{id}", h.getMyOrder, user)
	handle("POST /orders/pay-installment", h.payInstallment, user, orderLimit)
	handle("GET /orders/admin/all", h.listAllOrders, admin)
	handle("PATCH /orders/admin/{id}/status", h.updateOrderStatus, admin)
	handle("DELETE /orders/admin/{id}", h.deleteOrder, admin)
	handle("POST /orders/admin/approve-installment", h.approveInstallment, admin)

	// Coupons.
	handle("POST /coupons/validate", h.validateCoupon, optional)
	handle("GET /coupons/top-header", h.topHeaderCoupon)
	handle("POST /coupons", h.createCoupon, admin)
	handle("GET /coupons", h.listCoupons, admin)
	handle("GET /coupons/{id}", h.getCoupon, admin)
	handle("PATCH /coupons/{id}", h.updateCoupon, admin)
	handle("DELETE /coupons/{id}", h.deleteCoupon, admin)
	handle("PATCH /coupons/{id}/toggle", h.toggleCoupon, admin)

	// Testimonials.
	handle("GET /testimonials/public", h.publicTestimonials)
	handle("POST /testimonials", h.createTestimonial, admin)
	handle("GET /testimonials", h.listTestimonials, admin)
	handle("GET /testimonials/{id}", h.getTestimonial, admin)
	handle("PATCH /testimonials/{id}", h.updateTestimonial, admin)
	handle("DELETE /testimonials/{id}", h.deleteTestimonial, admin)
	handle("PATCH /testimonials/{id}/status", h.setTestimonialStatus, admin)
	handle("PATCH /testimonials/{id}/featured", h.toggleTestimonialFeatured, admin)

	// Customization requests.
	handle("POST /customizations", h.createCustomization, user)
	handle("GET /customizations/my-requests", h.listMyCustomizations, user)
	handle("GET /customizations/{id}", h.getCustomization, user)
	handle("POST /customizations/{id}/items", h.addCustomizationItems, user)
	handle("GET /customizations/admin/all", h.listAllCustomizations, admin)
	handle("PATCH /customizations/admin/{id}/items/{number}/toggle", h.toggleCustomizationItem, admin)
	handle("PATCH /customizations/admin/{id}", h.updateCustomization, admin)
	handle("PATCH /customizations/admin/{id}/complete", h.completeCustomization, admin)

	// Stats.
	handle("GET /stats/dashboard", h.dashboard)
	handle("POST /stats/reset", h.resetStats, admin)

	// Notifications.
	handle("GET /notifications/my", h.myNotifications, user)
	handle("GET /notifications/admin", h.adminNotifications, admin)
	handle("PATCH /notifications/{id}/read", h.markNotificationRead, user)

	mux.Handle(v1+"/", httpmiddleware.Routed(http.HandlerFunc(h.notFound)))
	return mux
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeErr(w, r, errRouteNotFound)
}
