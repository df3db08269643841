// Package delivery hands out the products of a paid order.
//
// Every line item becomes one Unit of a closed set (Website, Software,
// Course). Each unit is fulfilled by the Fulfiller registered for its kind;
// a failing item never blocks its siblings. After all items one invoice
// email is queued.
package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/mail"
	"github.com/xenking/extraweb/internal/domain/order"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/id"
)

// Download grants a buyer access to a website or software package.
type Download struct {
	ID          string
	UserID      string
	OrderID     string
	ProductID   string
	ProductType product.Type
	Title       string
	CreatedAt   time.Time
}

// Enrollment grants a buyer access to a course.
type Enrollment struct {
	ID        string
	UserID    string
	CourseID  string
	OrderID   string
	CreatedAt time.Time
}

// DownloadRepository persists download grants.
type DownloadRepository interface {
	Create(ctx context.Context, d *Download) error
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	// Enroll stores e. An existing enrollment of the user in the course
	// yields *apperr.DuplicateKeyError.
	Enroll(ctx context.Context, e *Enrollment) error
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Grant is the access a buyer receives for one unit.
type Grant struct {
	UserID    string
	OrderID   string
	ProductID string
	Title     string
}

// Unit is a deliverable line item.
type Unit interface {
	grant(userID, orderID string) Grant
	kind() product.Type
}

// Website is a purchased website template.
type Website struct {
	ID    string
	Title string
}

// Software is a purchased software package.
type Software struct {
	ID    string
	Title string
}

// Course is a purchased course.
type Course struct {
	ID    string
	Title string
}

func (w Website) kind() product.Type  { return product.TypeWebsite }
func (s Software) kind() product.Type { return product.TypeSoftware }
func (c Course) kind() product.Type   { return product.TypeCourse }

func (w Website) grant(userID, orderID string) Grant {
	return Grant{UserID: userID, OrderID: orderID, ProductID: w.ID, Title: w.Title}
}

func (s Software) grant(userID, orderID string) Grant {
	return Grant{UserID: userID, OrderID: orderID, ProductID: s.ID, Title: s.Title}
}

func (c Course) grant(userID, orderID string) Grant {
	return Grant{UserID: userID, OrderID: orderID, ProductID: c.ID, Title: c.Title}
}

// UnitOf converts an order item to its Unit.
func UnitOf(it order.Item) (Unit, error) {
	switch it.ProductType {
	case product.TypeWebsite:
		return Website{ID: it.ProductID, Title: it.Title}, nil
	case product.TypeSoftware:
		return Software{ID: it.ProductID, Title: it.Title}, nil
	case product.TypeCourse:
		return Course{ID: it.ProductID, Title: it.Title}, nil
	default:
		return nil, errors.Errorf("unknown product type %q", it.ProductType)
	}
}

// Fulfiller performs the delivery steps of one product kind.
type Fulfiller interface {
	IncrementSalesCounter(ctx context.Context, productID string) error
	GrantAccess(ctx context.Context, g Grant) error
}

// DownloadFulfiller delivers websites and software as download grants.
type DownloadFulfiller struct {
	kind      product.Type
	products  product.Repository
	downloads DownloadRepository
	now       func() time.Time
}

var _ Fulfiller = (*DownloadFulfiller)(nil)

// NewDownloadFulfiller creates a Fulfiller for websites or software.
func NewDownloadFulfiller(kind product.Type, products product.Repository, downloads DownloadRepository) *DownloadFulfiller {
	return &DownloadFulfiller{kind: kind, products: products, downloads: downloads, now: time.Now}
}

// IncrementSalesCounter bumps the product's sales count.
func (f *DownloadFulfiller) IncrementSalesCounter(ctx context.Context, productID string) error {
	if err := f.products.IncrementSales(ctx, f.kind, productID); err != nil {
		return errors.Wrap(err, "increment sales")
	}
	return nil
}

// GrantAccess creates a download record.
func (f *DownloadFulfiller) GrantAccess(ctx context.Context, g Grant) error {
	d := &Download{
		ID:          id.New(id.Download),
		UserID:      g.UserID,
		OrderID:     g.OrderID,
		ProductID:   g.ProductID,
		ProductType: f.kind,
		Title:       g.Title,
		CreatedAt:   f.now().UTC(),
	}
	if err := f.downloads.Create(ctx, d); err != nil {
		return errors.Wrap(err, "create download")
	}
	return nil
}

// CourseFulfiller delivers courses as enrollments.
type CourseFulfiller struct {
	products    product.Repository
	enrollments EnrollmentRepository
	now         func() time.Time
}

var _ Fulfiller = (*CourseFulfiller)(nil)

// NewCourseFulfiller creates a Fulfiller for courses.
func NewCourseFulfiller(products product.Repository, enrollments EnrollmentRepository) *CourseFulfiller {
	return &CourseFulfiller{products: products, enrollments: enrollments, now: time.Now}
}

// IncrementSalesCounter bumps the course's enrollment count.
func (f *CourseFulfiller) IncrementSalesCounter(ctx context.Context, courseID string) error {
	if err := f.products.IncrementEnrollments(ctx, courseID); err != nil {
		return errors.Wrap(err, "increment enrollments")
	}
	return nil
}

// GrantAccess enrolls the buyer. An existing enrollment is not an error.
func (f *CourseFulfiller) GrantAccess(ctx context.Context, g Grant) error {
	e := &Enrollment{
		ID:        id.New(id.Enrollment),
		UserID:    g.UserID,
		CourseID:  g.ProductID,
		OrderID:   g.OrderID,
		CreatedAt: f.now().UTC(),
	}
	if err := f.enrollments.Enroll(ctx, e); err != nil {
		if errors.Is(err, apperr.ErrDuplicateKey) {
			return errAlreadyEnrolled
		}
		return errors.Wrap(err, "enroll")
	}
	return nil
}

var errAlreadyEnrolled = errors.New("already enrolled")

// Invoices queues invoice emails.
type Invoices interface {
	QueueInvoice(ctx context.Context, inv mail.Invoice) error
}

// Fanout delivers every item of an order.
type Fanout struct {
	fulfillers map[product.Type]Fulfiller
	invoices   Invoices
}

var _ order.Deliverer = (*Fanout)(nil)

// NewFanout creates a Fanout with one Fulfiller per product kind.
func NewFanout(website, software, course Fulfiller, invoices Invoices) *Fanout {
	return &Fanout{
		fulfillers: map[product.Type]Fulfiller{
			product.TypeWebsite:  website,
			product.TypeSoftware: software,
			product.TypeCourse:   course,
		},
		invoices: invoices,
	}
}

// Deliver fulfills each item of o and queues the invoice. Failures are
// logged.
func (f *Fanout) Deliver(ctx context.Context, o *order.Order) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	for _, it := range o.Items {
		if err := f.deliverItem(ctx, o, it); err != nil {
			lg.Error("Deliver item",
				zap.String("product_id", it.ProductID),
				zap.String("title", it.Title),
				zap.Error(err),
			)
		}
	}

	inv := mail.Invoice{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		UserID:         o.UserID,
		Items:          order.MailLines(o.Items),
		Discount:       o.DiscountAmount,
		Total:          o.TotalAmount,
		PaymentMethod:  o.PaymentMethod,
		TransactionRef: o.TransactionID,
		OrderDate:      o.OrderDate,
	}
	if err := f.invoices.QueueInvoice(ctx, inv); err != nil {
		lg.Error("Queue invoice", zap.Error(err))
	}
}

func (f *Fanout) deliverItem(ctx context.Context, o *order.Order, it order.Item) error {
	u, err := UnitOf(it)
	if err != nil {
		return err
	}
	ff := f.fulfillers[u.kind()]
	if ff == nil {
		return errors.Errorf("no fulfiller for %s", u.kind())
	}

	switch u := u.(type) {
	case Course:
		// Enroll first so a repeated delivery does not inflate the counter.
		if err := ff.GrantAccess(ctx, u.grant(o.UserID, o.ID)); err != nil {
			if errors.Is(err, errAlreadyEnrolled) {
				return nil
			}
			return err
		}
		return ff.IncrementSalesCounter(ctx, u.ID)
	case Website, Software:
		if err := ff.IncrementSalesCounter(ctx, it.ProductID); err != nil {
			return err
		}
		return ff.GrantAccess(ctx, u.grant(o.UserID, o.ID))
	default:
		return errors.Errorf("unexpected unit %T", u)
	}
}
