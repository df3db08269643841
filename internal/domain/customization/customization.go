// Package customization tracks buyers' change requests for purchased
// websites. A request holds numbered items an admin completes one by one;
// the overall status follows the items.
package customization

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/id"
)

// Errors.
var (
	ErrNotFound     = apperr.New(apperr.ErrNotFound, "Request not found")
	ErrItemNotFound = apperr.New(apperr.ErrNotFound, "Request item not found")
	ErrNoItems      = apperr.Validation("requestItems", "At least one request item is required")
)

// Status is the overall progress of a request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Priority orders requests for admins.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// EditType classifies a requested change.
type EditType string

const (
	EditText          EditType = "text"
	EditImage         EditType = "image"
	EditDesign        EditType = "design"
	EditFunctionality EditType = "functionality"
	EditContact       EditType = "contact"
	EditOther         EditType = "other"
)

func (e EditType) valid() bool {
	switch e {
	case EditText, EditImage, EditDesign, EditFunctionality, EditContact, EditOther:
		return true
	default:
		return false
	}
}

// Item is one requested change.
type Item struct {
	Number       int
	SectionName  string
	EditType     EditType
	Description  string
	Images       []string
	CurrentValue string
	NewValue     string
	IsCompleted  bool
	AdminNote    string
	CompletedAt  *time.Time
}

// Request is a set of changes for one purchased website.
type Request struct {
	ID            string
	UserID        string
	OrderID       string
	WebsiteID     string
	WebsiteTitle  string
	Items         []Item
	OverallStatus Status
	Priority      Priority
	AdminMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item returns item n.
func (r *Request) Item(n int) (*Item, error) {
	for i := range r.Items {
		if r.Items[i].Number == n {
			return &r.Items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

// recompute derives the overall status from item completion.
func (r *Request) recompute() {
	done := 0
	for _, it := range r.Items {
		if it.IsCompleted {
			done++
		}
	}
	switch {
	case done == 0:
		r.OverallStatus = StatusPending
	case done == len(r.Items):
		r.OverallStatus = StatusCompleted
	default:
		r.OverallStatus = StatusInProgress
	}
}

// StatusCounts summarizes all requests by status.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Total      int64 `json:"total"`
}

// Filter narrows request listings.
type Filter struct {
	UserID   string
	Status   Status
	Priority Priority
	Search   string
}

// Repository persists requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, r *Request) error
	List(ctx context.Context, f Filter, p paging.Params) ([]Request, int64, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// CreateInput is a buyer's new request.
type CreateInput struct {
	UserID       string
	OrderID      string
	WebsiteID    string
	WebsiteTitle string
	Priority     Priority
	Items        []Item
}

// Service implements customization requests.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a customization Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new request. Items are numbered from 1.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	var fields []apperr.FieldError
	if in.OrderID == "" {
		fields = append(fields, apperr.FieldError{Path: "orderId", Message: "Order is required"})
	}
	if in.WebsiteID == "" {
		fields = append(fields, apperr.FieldError{Path: "websiteId", Message: "Website is required"})
	}
	if strings.TrimSpace(in.WebsiteTitle) == "" {
		fields = append(fields, apperr.FieldError{Path: "websiteTitle", Message: "Website title is required"})
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		fields = append(fields, apperr.FieldError{Path: "priority", Message: "Invalid priority"})
	}
	items, itemErrs := numberItems(in.Items, 0)
	fields = append(fields, itemErrs...)
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	now := s.now().UTC()
	r := &Request{
		ID:            id.New(id.Customization),
		UserID:        in.UserID,
		OrderID:       in.OrderID,
		WebsiteID:     in.WebsiteID,
		WebsiteTitle:  strings.TrimSpace(in.WebsiteTitle),
		Items:         items,
		OverallStatus: StatusPending,
		Priority:      in.Priority,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create customization request")
	}
	return r, nil
}

func numberItems(in []Item, offset int) ([]Item, []apperr.FieldError) {
	var fields []apperr.FieldError
	out := make([]Item, len(in))
	for i, it := range in {
		it.SectionName = strings.TrimSpace(it.SectionName)
		if it.SectionName == "" {
			fields = append(fields, apperr.FieldError{
				Path:    "requestItems." + strconv.Itoa(i) + ".sectionName",
				Message: "Section name is required",
			})
		}
		if it.EditType == "" {
			it.EditType = EditText
		}
		if !it.EditType.valid() {
			fields = append(fields, apperr.FieldError{
				Path:    "requestItems." + strconv.Itoa(i) + ".editType",
				Message: "Invalid edit type",
			})
		}
		it.Number = offset + i + 1
		it.IsCompleted = false
		it.CompletedAt = nil
		it.AdminNote = ""
		out[i] = it
	}
	return out, fields
}

// ListMine returns the buyer's requests, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, status Status, p paging.Params) ([]Request, paging.Meta, error) {
	return s.list(ctx, Filter{UserID: userID, Status: status}, p)
}

// ListAll returns requests for admins together with status counts.
func (s *Service) ListAll(ctx context.Context, f Filter, p paging.Params) ([]Request, paging.Meta, StatusCounts, error) {
	items, meta, err := s.list(ctx, f, p)
	if err != nil {
		return nil, paging.Meta{}, StatusCounts{}, err
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, paging.Meta{}, StatusCounts{}, errors.Wrap(err, "count customization requests")
	}
	counts.Total = counts.Pending + counts.InProgress + counts.Completed
	return items, meta, counts, nil
}

func (s *Service) list(ctx context.Context, f Filter, p paging.Params) ([]Request, paging.Meta, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, paging.Meta{}, apperr.Validation("status", "Invalid status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, paging.Meta{}, apperr.Validation("priority", "Invalid priority")
	}
	p = p.Normalize()
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list customization requests")
	}
	return items, paging.NewMeta(p, total), nil
}

// Get returns a request. A non-empty userID restricts it to that owner.
func (s *Service) Get(ctx context.Context, requestID, userID string) (*Request, error) {
	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get customization request")
	}
	if userID != "" && r.UserID != userID {
		return nil, ErrNotFound
	}
	return r, nil
}

// AddItems appends items to the buyer's request. Numbering continues after
// the last item; a completed request is reopened.
func (s *Service) AddItems(ctx context.Context, requestID, userID string, items []Item) (*Request, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	r, err := s.Get(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	last := 0
	for _, it := range r.Items {
		last = max(last, it.Number)
	}
	added, fields := numberItems(items, last)
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}
	r.Items = append(r.Items, added...)
	if r.OverallStatus == StatusCompleted {
		r.OverallStatus = StatusInProgress
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ToggleItem sets the completion of item n and recomputes the overall
// status. An empty note keeps the previous one.
func (s *Service) ToggleItem(ctx context.Context, requestID string, n int, completed bool, note string) (*Request, error) {
	r, err := s.Get(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	it, err := r.Item(n)
	if err != nil {
		return nil, err
	}
	it.IsCompleted = completed
	if note = strings.TrimSpace(note); note != "" {
		it.AdminNote = note
	}
	if completed {
		t := s.now().UTC()
		it.CompletedAt = &t
	} else {
		it.CompletedAt = nil
	}
	r.recompute()
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateInput holds admin changes. Empty fields are left unchanged.
type UpdateInput struct {
	Status       Status
	Priority     Priority
	AdminMessage string
}

// Update changes status, priority or the admin message.
func (s *Service) Update(ctx context.Context, requestID string, in UpdateInput) (*Request, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperr.Validation("status", "Invalid status")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return nil, apperr.Validation("priority", "Invalid priority")
	}
	r, err := s.Get(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	if in.Status != "" {
		r.OverallStatus = in.Status
	}
	if in.Priority != "" {
		r.Priority = in.Priority
	}
	if in.AdminMessage != "" {
		r.AdminMessage = in.AdminMessage
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CompleteAll marks every item and the request completed.
func (s *Service) CompleteAll(ctx context.Context, requestID string) (*Request, error) {
	r, err := s.Get(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range r.Items {
		if !r.Items[i].IsCompleted {
			t := now
			r.Items[i].IsCompleted = true
			r.Items[i].CompletedAt = &t
		}
	}
	r.OverallStatus = StatusCompleted
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) save(ctx context.Context, r *Request) error {
	r.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, r); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "update customization request")
	}
	return nil
}
