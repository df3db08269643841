// Package testimonial manages client testimonials and video reviews shown on
// the storefront.
package testimonial

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/id"
)

// ErrNotFound is returned when a testimonial does not exist.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "Testimonial not found")

// Type distinguishes written testimonials from video reviews.
type Type string

const (
	TypeTestimonial Type = "testimonial"
	TypeReview      Type = "review"
)

// Status is the moderation state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Testimonial is a client statement. Bn fields hold the Bengali
// translation.
type Testimonial struct {
	ID                  string
	ClientName          string
	ClientNameBn        string
	CompanyName         string
	CompanyNameBn       string
	Title               string
	TitleBn             string
	Type                Type
	VideoID             string
	Description         string
	DescriptionBn       string
	ClientImage         string
	ClientDesignation   string
	ClientDesignationBn string
	Rating              int
	Status              Status
	IsFeatured          bool
	Order               int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate checks field bounds.
func (t *Testimonial) Validate() error {
	var fields []apperr.FieldError
	add := func(path, msg string) {
		fields = append(fields, apperr.FieldError{Path: path, Message: msg})
	}
	between := func(path, label, v string, lo, hi int) {
		n := utf8.RuneCountInString(v)
		switch {
		case n < lo:
			add(path, label+" must be at least "+strconv.Itoa(lo)+" characters")
		case n > hi:
			add(path, label+" cannot exceed "+strconv.Itoa(hi)+" characters")
		}
	}

	between("clientName", "Client name", t.ClientName, 2, 100)
	between("companyName", "Company name", t.CompanyName, 2, 150)
	between("title", "Title", t.Title, 5, 200)
	between("clientNameBn", "Bengali client name", t.ClientNameBn, 0, 100)
	between("companyNameBn", "Bengali company name", t.CompanyNameBn, 0, 150)
	between("titleBn", "Bengali title", t.TitleBn, 0, 200)
	between("description", "Description", t.Description, 0, 500)
	between("descriptionBn", "Bengali description", t.DescriptionBn, 0, 500)
	between("clientDesignation", "Designation", t.ClientDesignation, 0, 100)
	between("clientDesignationBn", "Bengali designation", t.ClientDesignationBn, 0, 100)
	if utf8.RuneCountInString(t.VideoID) < 5 {
		add("videoId", "Video ID must be at least 5 characters")
	}
	if t.Type != TypeTestimonial && t.Type != TypeReview {
		add("type", "Type must be testimonial or review")
	}
	if t.Rating < 1 || t.Rating > 5 {
		add("rating", "Rating must be between 1 and 5")
	}
	if !t.Status.Valid() {
		add("status", "Invalid status")
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// Filter narrows the admin listing.
type Filter struct {
	Search     string
	Type       Type
	Status     Status
	IsFeatured *bool
	// SortBy is a field name; it defaults to "order".
	SortBy string
	Desc   bool
}

// Repository persists testimonials.
type Repository interface {
	Create(ctx context.Context, t *Testimonial) error
	GetByID(ctx context.Context, id string) (*Testimonial, error)
	List(ctx context.Context, f Filter, p paging.Params) ([]Testimonial, int64, error)
	// ListApproved returns approved testimonials by display order, newest
	// first within the same order. An empty type matches all.
	ListApproved(ctx context.Context, t Type) ([]Testimonial, error)
	Update(ctx context.Context, t *Testimonial) error
	Delete(ctx context.Context, id string) error
}

// SortFields lists the fields the admin listing can sort by.
var SortFields = map[string]bool{
	"order":      true,
	"createdAt":  true,
	"rating":     true,
	"clientName": true,
}

// Service implements testimonial management.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a testimonial Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new testimonial with defaults applied.
func (s *Service) Create(ctx context.Context, t *Testimonial) error {
	if t.Type == "" {
		t.Type = TypeTestimonial
	}
	if t.Rating == 0 {
		t.Rating = 5
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	trim(t)
	if err := t.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	t.ID = id.New(id.Testimonial)
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.repo.Create(ctx, t); err != nil {
		return errors.Wrap(err, "create testimonial")
	}
	return nil
}

func trim(t *Testimonial) {
	t.ClientName = strings.TrimSpace(t.ClientName)
	t.CompanyName = strings.TrimSpace(t.CompanyName)
	t.Title = strings.TrimSpace(t.Title)
	t.VideoID = strings.TrimSpace(t.VideoID)
}

// List returns a filtered page for admins.
func (s *Service) List(ctx context.Context, f Filter, p paging.Params) ([]Testimonial, paging.Meta, error) {
	if f.SortBy == "" {
		f.SortBy = "order"
	}
	if !SortFields[f.SortBy] {
		return nil, paging.Meta{}, apperr.Validation("sortBy", "Invalid sort field")
	}
	p = p.Normalize()
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list testimonials")
	}
	return items, paging.NewMeta(p, total), nil
}

// Public returns approved testimonials.
func (s *Service) Public(ctx context.Context, t Type) ([]Testimonial, error) {
	items, err := s.repo.ListApproved(ctx, t)
	if err != nil {
		return nil, errors.Wrap(err, "list approved testimonials")
	}
	return items, nil
}

// Get returns a testimonial by id.
func (s *Service) Get(ctx context.Context, testimonialID string) (*Testimonial, error) {
	t, err := s.repo.GetByID(ctx, testimonialID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get testimonial")
	}
	return t, nil
}

// Update applies fn to the stored testimonial and saves it.
func (s *Service) Update(ctx context.Context, testimonialID string, fn func(t *Testimonial)) (*Testimonial, error) {
	t, err := s.Get(ctx, testimonialID)
	if err != nil {
		return nil, err
	}
	fn(t)
	trim(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, errors.Wrap(err, "update testimonial")
	}
	return t, nil
}

// SetStatus moderates a testimonial.
func (s *Service) SetStatus(ctx context.Context, testimonialID string, status Status) (*Testimonial, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status", "Invalid status")
	}
	return s.Update(ctx, testimonialID, func(t *Testimonial) { t.Status = status })
}

// ToggleFeatured flips the featured flag.
func (s *Service) ToggleFeatured(ctx context.Context, testimonialID string) (*Testimonial, error) {
	return s.Update(ctx, testimonialID, func(t *Testimonial) { t.IsFeatured = !t.IsFeatured })
}

// Delete removes a testimonial.
func (s *Service) Delete(ctx context.Context, testimonialID string) error {
	if err := s.repo.Delete(ctx, testimonialID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete testimonial")
	}
	return nil
}
