// Package order implements the order aggregate with its installment plan and
// the service orchestrating order placement, installment review and
// delivery.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
)

// DeliveryUnlockInstallment is the installment whose approval delivers the
// purchased products. Buyers receive the products once the first
// installment clears, not the last.
const DeliveryUnlockInstallment = 1

// Plan bounds.
const (
	MaxInstallments                = 12
	DefaultInstallmentIntervalDays = 30
)

// Errors.
var (
	ErrNotFound             = apperr.New(apperr.ErrNotFound, "Order not found")
	ErrNotInstallmentOrder  = apperr.New(apperr.ErrNotFound, "Order/Installment not found")
	ErrInstallmentNotFound  = apperr.New(apperr.ErrNotFound, "Installment not found")
	ErrInstallmentCompleted = apperr.New(apperr.ErrInvalidState, "Installment is already completed")
	ErrVersionConflict      = apperr.New(apperr.ErrConflict, "Order was modified concurrently, please retry")
	ErrEmptyItems           = apperr.Validation("items", "At least one item is required")
)

// PaymentStatus is the payment state of a whole order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	default:
		return false
	}
}

// InstallmentStatus is the state of a single installment.
type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentCompleted InstallmentStatus = "completed"
	InstallmentFailed    InstallmentStatus = "failed"
)

// Provider is a manual payment channel.
type Provider string

const (
	ProviderBkash  Provider = "bkash"
	ProviderRocket Provider = "rocket"
	ProviderNagad  Provider = "nagad"
	ProviderManual Provider = "manual"
)

// PaymentDetails is evidence of a manual payment.
type PaymentDetails struct {
	Provider      Provider
	AccountNumber string
	TransactionID string
	Date          string
	Time          string
}

// Item is a purchased product. Items never change after creation.
type Item struct {
	ProductID   string
	ProductType product.Type
	Title       string
	Price       decimal.Decimal
	Image       string
}

// Installment is one scheduled partial payment.
type Installment struct {
	Number         int
	Amount         decimal.Decimal
	DueDate        time.Time
	Status         InstallmentStatus
	PaymentDetails *PaymentDetails
	PaidAt         *time.Time
}

// Order is a purchase of one or more products with one payment lifecycle.
type Order struct {
	ID               string
	Number           string
	UserID           string
	Items            []Item
	TotalAmount      decimal.Decimal
	PaymentMethod    string
	PaymentStatus    PaymentStatus
	TransactionID    string
	ManualPayment    *PaymentDetails
	CouponCode       string
	DiscountAmount   decimal.Decimal
	IsInstallment    bool
	InstallmentCount int
	Installments     []Installment
	// DeliveredAt is set by the write that unlocks delivery.
	DeliveredAt *time.Time
	// Version is incremented by every stored update.
	Version   int64
	OrderDate time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows order listings.
type Filter struct {
	UserID          string
	Status          PaymentStatus
	InstallmentOnly bool
}

// Repository persists orders.
type Repository interface {
	// Create stores a new order. A taken order number yields
	// *apperr.DuplicateKeyError with Field "orderNumber".
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// Update stores o if its stored version still equals o.Version and
	// increments o.Version. Otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter, p paging.Params) ([]Order, int64, error)
}

// FirstTitle names the order in notifications.
func (o *Order) FirstTitle() string {
	if len(o.Items) == 0 || o.Items[0].Title == "" {
		return "Product"
	}
	return o.Items[0].Title
}

// Delivered reports whether the order's products were handed out.
func (o *Order) Delivered() bool {
	return o.DeliveredAt != nil
}

// Installment returns installment n.
func (o *Order) Installment(n int) (*Installment, error) {
	if !o.IsInstallment || len(o.Installments) == 0 {
		return nil, ErrNotInstallmentOrder
	}
	for i := range o.Installments {
		if o.Installments[i].Number == n {
			return &o.Installments[i], nil
		}
	}
	return nil, ErrInstallmentNotFound
}

// AllInstallmentsCompleted reports whether the plan is fully paid.
func (o *Order) AllInstallmentsCompleted() bool {
	if len(o.Installments) == 0 {
		return false
	}
	for _, inst := range o.Installments {
		if inst.Status != InstallmentCompleted {
			return false
		}
	}
	return true
}

// SubmitInstallment attaches buyer evidence to installment n and puts it up
// for review. A failed installment may be resubmitted.
func (o *Order) SubmitInstallment(n int, d PaymentDetails, now time.Time) (*Installment, error) {
	inst, err := o.Installment(n)
	if err != nil {
		return nil, err
	}
	if inst.Status == InstallmentCompleted {
		return nil, ErrInstallmentCompleted
	}
	inst.PaymentDetails = &d
	inst.Status = InstallmentPending
	o.UpdatedAt = now
	return inst, nil
}

// ReviewInstallment approves or rejects installment n. deliver is true when
// this transition unlocks delivery of the order.
func (o *Order) ReviewInstallment(n int, status InstallmentStatus, now time.Time) (inst *Installment, deliver bool, err error) {
	if status != InstallmentCompleted && status != InstallmentFailed {
		return nil, false, apperr.Validation("status", "Status must be completed or failed")
	}
	inst, err = o.Installment(n)
	if err != nil {
		return nil, false, err
	}
	if inst.Status == InstallmentCompleted {
		return nil, false, ErrInstallmentCompleted
	}

	inst.Status = status
	if status == InstallmentCompleted {
		paid := now
		inst.PaidAt = &paid
		if n == DeliveryUnlockInstallment {
			deliver = o.markDelivered(now)
		}
	}
	if o.AllInstallmentsCompleted() {
		o.PaymentStatus = PaymentCompleted
		deliver = o.markDelivered(now) || deliver
	}
	o.UpdatedAt = now
	return inst, deliver, nil
}

// SetPaymentStatus overrides the order payment status. deliver is true when
// the order becomes completed for the first time.
func (o *Order) SetPaymentStatus(status PaymentStatus, transactionID string, now time.Time) (deliver bool, err error) {
	if !status.Valid() {
		return false, apperr.Validation("status", "Invalid payment status")
	}
	o.PaymentStatus = status
	if transactionID != "" {
		o.TransactionID = transactionID
	}
	if status == PaymentCompleted {
		deliver = o.markDelivered(now)
	}
	o.UpdatedAt = now
	return deliver, nil
}

func (o *Order) markDelivered(now time.Time) bool {
	if o.DeliveredAt != nil {
		return false
	}
	t := now
	o.DeliveredAt = &t
	return true
}
