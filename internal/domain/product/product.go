package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "product not found")

// Type is the kind of a sellable product. The set is closed.
type Type string

const (
	TypeWebsite  Type = "website"
	TypeSoftware Type = "software"
	TypeCourse   Type = "course"
)

// Types lists every product type.
var Types = []Type{TypeWebsite, TypeSoftware, TypeCourse}

// Valid reports whether t is a known product type.
func (t Type) Valid() bool {
	switch t {
	case TypeWebsite, TypeSoftware, TypeCourse:
		return true
	default:
		return false
	}
}

// Status values for websites and software listings.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
)

// Product is a catalog entry of any type.
type Product struct {
	ID        string
	Type      Type
	Title     string
	Price     decimal.Decimal
	Image     string
	Status    string
	CreatedAt time.Time
}

// ResetResult reports how many documents a metrics reset touched per type.
type ResetResult struct {
	Websites int64 `json:"websites"`
	Software int64 `json:"software"`
}

// Repository provides catalog lookups and the counters touched by delivery.
type Repository interface {
	GetByID(ctx context.Context, t Type, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	IncrementSales(ctx context.Context, t Type, id string) error
	IncrementEnrollments(ctx context.Context, courseID string) error
	// ResetMetrics zeroes rating, review, sales, view and like counters on
	// websites and software.
	ResetMetrics(ctx context.Context) (*ResetResult, error)
}
