package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/mail"
	"github.com/xenking/extraweb/internal/domain/notification"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/user"
	"github.com/xenking/extraweb/internal/id"
)

const maxNumberAttempts = 3

// Deliverer hands out the products of a paid order.
type Deliverer interface {
	Deliver(ctx context.Context, o *Order)
}

// Notifier schedules notifications.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) error
}

// Confirmations queues the order confirmation email.
type Confirmations interface {
	QueueOrderPlaced(ctx context.Context, p mail.OrderPlaced) error
}

// Downloads removes download grants of deleted orders.
type Downloads interface {
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
}

// Enrollments removes course enrollments of deleted orders.
type Enrollments interface {
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
}

// UserLookup resolves buyer names for notifications.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// CreateInput is a buyer's order request.
type CreateInput struct {
	UserID           string
	Items            []Item
	PaymentMethod    string
	PaymentStatus    PaymentStatus
	IsInstallment    bool
	InstallmentCount int
	Installments     []InstallmentInput
	ManualPayment    *PaymentDetails
	CouponCode       string
	// DiscountAmount is what the client believes the coupon is worth. The
	// applied discount is always computed from the coupon.
	DiscountAmount decimal.Decimal
}

// Service encapsulates order business logic.
type Service struct {
	orders      Repository
	products    product.Repository
	coupons     coupon.Validator
	users       UserLookup
	deliverer   Deliverer
	notifier    Notifier
	confirm     Confirmations
	downloads   Downloads
	enrollments Enrollments
	now         func() time.Time

	tracer     trace.Tracer
	created    metric.Int64Counter
	deliveries metric.Int64Counter
}

// Option configures a Service.
type Option func(s *Service)

// WithDeliverer sets the delivery fan-out.
func WithDeliverer(d Deliverer) Option {
	return func(s *Service) { s.deliverer = d }
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithConfirmations sets the order confirmation mail queue.
func WithConfirmations(c Confirmations) Option {
	return func(s *Service) { s.confirm = c }
}

// WithCascade sets the repositories cleaned up when an order is deleted.
func WithCascade(d Downloads, e Enrollments) Option {
	return func(s *Service) {
		s.downloads = d
		s.enrollments = e
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("github.com/xenking/extraweb/internal/domain/order") }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.initMetrics(mp) }
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	products product.Repository,
	coupons coupon.Validator,
	users UserLookup,
	opts ...Option,
) *Service {
	s := &Service{
		orders:   orders,
		products: products,
		coupons:  coupons,
		users:    users,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracer == nil {
		WithTracerProvider(otel.GetTracerProvider())(s)
	}
	if s.created == nil {
		s.initMetrics(otel.GetMeterProvider())
	}
	return s
}

func (s *Service) initMetrics(mp metric.MeterProvider) {
	m := mp.Meter("github.com/xenking/extraweb/internal/domain/order")
	var err error
	if s.created, err = m.Int64Counter("orders.created"); err != nil {
		otel.Handle(err)
		s.created = noop.Int64Counter{}
	}
	if s.deliveries, err = m.Int64Counter("orders.deliveries"); err != nil {
		otel.Handle(err)
		s.deliveries = noop.Int64Counter{}
	}
}

// Create places an order. When the order is paid on creation its products
// are delivered immediately.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}
	items, subtotal, err := s.resolveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	status := in.PaymentStatus
	if status == "" {
		status = PaymentPending
	}
	if !status.Valid() {
		return nil, apperr.Validation("paymentStatus", "Invalid payment status")
	}
	if in.IsInstallment && status == PaymentCompleted {
		return nil, apperr.Validation("paymentStatus", "Installment orders start as pending")
	}
	method := in.PaymentMethod
	if method == "" {
		method = string(ProviderManual)
	}

	var quote *coupon.Quote
	discount := decimal.Zero
	code := coupon.NormalizeCode(in.CouponCode)
	switch {
	case code != "":
		cart := coupon.Cart{Total: subtotal}
		for _, it := range items {
			cart.Types = append(cart.Types, it.ProductType)
			cart.ProductIDs = append(cart.ProductIDs, it.ProductID)
		}
		quote, err = s.coupons.Validate(ctx, code, in.UserID, cart)
		if err != nil {
			var invalid *coupon.InvalidCouponError
			switch {
			case errors.Is(err, coupon.ErrNotFound):
				return nil, apperr.Validation("couponCode", "Invalid coupon code")
			case errors.As(err, &invalid):
				return nil, invalid
			}
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = quote.Discount
	case in.DiscountAmount.IsPositive():
		return nil, apperr.Validation("discountAmount", "A discount requires a coupon code")
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	now := s.now().UTC()
	o := &Order{
		ID:             id.New(id.Order),
		UserID:         in.UserID,
		Items:          items,
		TotalAmount:    total,
		PaymentMethod:  method,
		PaymentStatus:  status,
		ManualPayment:  in.ManualPayment,
		CouponCode:     code,
		DiscountAmount: discount,
		OrderDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.IsInstallment {
		count, interval := in.InstallmentCount, 0
		if quote != nil && quote.Coupon.InstallmentEnabled {
			interval = quote.Coupon.InstallmentIntervalDays
			if count == 0 && len(in.Installments) == 0 {
				count = quote.Coupon.InstallmentCount
			}
		}
		plan, err := buildPlan(total, count, interval, in.Installments, now)
		if err != nil {
			return nil, err
		}
		if in.ManualPayment != nil {
			d := *in.ManualPayment
			plan[0].PaymentDetails = &d
			plan[0].Status = InstallmentPending
		}
		o.IsInstallment = true
		o.InstallmentCount = len(plan)
		o.Installments = plan
	}
	deliver := o.PaymentStatus == PaymentCompleted && o.markDelivered(now)

	if quote != nil {
		if err := s.coupons.Redeem(ctx, quote, o.ID); err != nil {
			return nil, err
		}
	}
	if err := s.insert(ctx, o); err != nil {
		if quote != nil {
			if rerr := s.coupons.Release(ctx, quote, o.ID); rerr != nil {
				zctx.From(ctx).Error("Release coupon usage", zap.String("order_id", o.ID), zap.Error(rerr))
			}
		}
		return nil, err
	}
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("installment", o.IsInstallment)))
	span.SetAttributes(attribute.String("order.id", o.ID))

	s.announce(ctx, o)
	if deliver {
		s.deliver(ctx, o)
	}
	return o, nil
}

// resolveItems checks every item against the catalog. Catalog price and
// title win over what the client sent.
func (s *Service) resolveItems(ctx context.Context, in []Item) ([]Item, decimal.Decimal, error) {
	items := make([]Item, len(in))
	subtotal := decimal.Zero
	for i, it := range in {
		if !it.ProductType.Valid() {
			return nil, decimal.Zero, apperr.Validation(fmt.Sprintf("items.%d.productType", i), "Invalid product type")
		}
		p, err := s.products.GetByID(ctx, it.ProductType, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, decimal.Zero, apperr.Validation(fmt.Sprintf("items.%d.productId", i), "Product not found")
			}
			return nil, decimal.Zero, errors.Wrap(err, "get product")
		}
		it.Price = p.Price
		if p.Title != "" {
			it.Title = p.Title
		}
		if it.Image == "" {
			it.Image = p.Image
		}
		items[i] = it
		subtotal = subtotal.Add(it.Price)
	}
	return items, subtotal, nil
}

// insert stores o under a fresh order number, retrying on number
// collisions.
func (s *Service) insert(ctx context.Context, o *Order) error {
	var err error
	for range maxNumberAttempts {
		o.Number = "EW-" + id.Suffix(id.Order)
		err = s.orders.Create(ctx, o)
		var dup *apperr.DuplicateKeyError
		if errors.As(err, &dup) && dup.Field == "orderNumber" {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "create order")
		}
		return nil
	}
	return errors.Wrap(err, "create order")
}

func (s *Service) announce(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	buyer := s.buyerName(ctx, o.UserID)

	if s.notifier != nil {
		for _, n := range []notification.Notification{
			{
				UserID:  o.UserID,
				Kind:    notification.KindOrder,
				Title:   "Order Placed",
				Message: fmt.Sprintf("Your order #%s has been placed successfully.", o.Number),
				OrderID: o.ID,
			},
			{
				ForAdmin: true,
				Kind:     notification.KindOrder,
				Title:    "New Order",
				Message:  fmt.Sprintf("%s placed order #%s for %s.", buyer, o.Number, o.TotalAmount.StringFixed(2)),
				OrderID:  o.ID,
			},
		} {
			if err := s.notifier.Notify(ctx, n); err != nil {
				lg.Error("Notify order placed", zap.Error(err))
			}
		}
	}

	if s.confirm != nil {
		p := mail.OrderPlaced{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			UserID:        o.UserID,
			Items:         MailLines(o.Items),
			Total:         o.TotalAmount,
			IsInstallment: o.IsInstallment,
			Installments:  o.InstallmentCount,
			OrderDate:     o.OrderDate,
		}
		if err := s.confirm.QueueOrderPlaced(ctx, p); err != nil {
			lg.Error("Queue order confirmation", zap.Error(err))
		}
	}
}

func (s *Service) deliver(ctx context.Context, o *Order) {
	s.deliveries.Add(ctx, 1)
	if s.deliverer == nil {
		return
	}
	s.deliverer.Deliver(ctx, o)
}

func (s *Service) buyerName(ctx context.Context, userID string) string {
	if s.users == nil {
		return "A User"
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			zctx.From(ctx).Warn("Lookup buyer", zap.String("user_id", userID), zap.Error(err))
		}
		return "A User"
	}
	return u.FullName()
}

// MailLines converts order items to email lines.
func MailLines(items []Item) []mail.Line {
	lines := make([]mail.Line, len(items))
	for i, it := range items {
		lines[i] = mail.Line{Title: it.Title, Type: string(it.ProductType), Price: it.Price}
	}
	return lines
}

// SubmitInstallment records the buyer's payment evidence for installment n
// of their order.
func (s *Service) SubmitInstallment(ctx context.Context, orderID, userID string, n int, d PaymentDetails) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.SubmitInstallment")
	defer span.End()

	o, err := s.getOwned(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotInstallmentOrder
		}
		return nil, err
	}
	inst, err := o.SubmitInstallment(n, d, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapUpdate(err)
	}

	if s.notifier != nil {
		err := s.notifier.Notify(ctx, notification.Notification{
			ForAdmin: true,
			Kind:     notification.KindInstallment,
			Title:    "Installment Payment Submitted",
			Message: fmt.Sprintf("%s submitted installment #%d (%s) for %s.",
				s.buyerName(ctx, userID), inst.Number, inst.Amount.StringFixed(2), o.FirstTitle()),
			OrderID: o.ID,
		})
		if err != nil {
			zctx.From(ctx).Error("Notify installment submitted", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// ApproveInstallment sets installment n to completed or failed. Approving
// DeliveryUnlockInstallment delivers the order once the change is stored.
func (s *Service) ApproveInstallment(ctx context.Context, orderID string, n int, status InstallmentStatus) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ApproveInstallment")
	defer span.End()

	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	inst, deliver, err := o.ReviewInstallment(n, status, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapUpdate(err)
	}
	if deliver {
		s.deliver(ctx, o)
	}

	if s.notifier != nil {
		title, verb := "Installment Approved", "approved"
		if status == InstallmentFailed {
			title, verb = "Installment Rejected", "rejected"
		}
		err := s.notifier.Notify(ctx, notification.Notification{
			UserID:  o.UserID,
			Kind:    notification.KindInstallment,
			Title:   title,
			Message: fmt.Sprintf("Your installment #%d (%s) for %s was %s.", inst.Number, inst.Amount.StringFixed(2), o.FirstTitle(), verb),
			OrderID: o.ID,
		})
		if err != nil {
			zctx.From(ctx).Error("Notify installment review", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// UpdatePaymentStatus lets an admin set the order payment status. The first
// switch to completed delivers the order.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, status PaymentStatus, transactionID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdatePaymentStatus")
	defer span.End()

	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	deliver, err := o.SetPaymentStatus(status, strings.TrimSpace(transactionID), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapUpdate(err)
	}
	if deliver {
		s.deliver(ctx, o)
	}
	return o, nil
}

// ListMine returns the buyer's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, p paging.Params) ([]Order, paging.Meta, error) {
	return s.list(ctx, Filter{UserID: userID}, p)
}

// ListAll returns all orders. The pseudo status "installment" selects
// installment orders.
func (s *Service) ListAll(ctx context.Context, status string, p paging.Params) ([]Order, paging.Meta, error) {
	var f Filter
	switch {
	case status == "":
	case status == "installment":
		f.InstallmentOnly = true
	case PaymentStatus(status).Valid():
		f.Status = PaymentStatus(status)
	default:
		return nil, paging.Meta{}, apperr.Validation("status", "Invalid status filter")
	}
	return s.list(ctx, f, p)
}

func (s *Service) list(ctx context.Context, f Filter, p paging.Params) ([]Order, paging.Meta, error) {
	p = p.Normalize()
	orders, total, err := s.orders.List(ctx, f, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list orders")
	}
	return orders, paging.NewMeta(p, total), nil
}

// GetMine returns one of the buyer's orders.
func (s *Service) GetMine(ctx context.Context, orderID, userID string) (*Order, error) {
	return s.getOwned(ctx, orderID, userID)
}

// Delete removes an order together with its download grants and
// enrollments.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return err
	}
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	if s.downloads != nil {
		n, err := s.downloads.DeleteByOrder(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "delete downloads")
		}
		lg.Debug("Deleted downloads", zap.Int64("count", n))
	}
	if s.enrollments != nil {
		n, err := s.enrollments.DeleteByOrder(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "delete enrollments")
		}
		lg.Debug("Deleted enrollments", zap.Int64("count", n))
	}
	if err := s.orders.Delete(ctx, o.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete order")
	}
	return nil
}

func (s *Service) get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (s *Service) getOwned(ctx context.Context, orderID, userID string) (*Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func wrapUpdate(err error) error {
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Wrap(err, "update order")
}
