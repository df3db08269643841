// Package notification records user- and admin-facing events such as order
// placement and installment review.
//
// Notify does not write the notification directly: it enqueues an outbox
// task, and the task handler (Handle) persists it. Handle is idempotent on
// the notification id, so redelivered tasks do not duplicate entries.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/id"
)

// TaskKind is the outbox task kind handled by Dispatcher.Handle.
const TaskKind = "notification.create"

// ErrNotFound is returned when a notification does not exist or is not
// visible to the caller.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "notification not found")

// Kind groups notifications for display.
type Kind string

const (
	KindOrder       Kind = "order"
	KindInstallment Kind = "installment"
	KindPayment     Kind = "payment"
)

// Notification is a stored event. Either UserID is set, or ForAdmin.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	ForAdmin  bool      `json:"forAdmin"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   string    `json:"orderId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, p paging.Params) ([]Notification, int64, error)
	ListForAdmin(ctx context.Context, p paging.Params) ([]Notification, int64, error)
	// MarkRead marks a notification read. An empty userID addresses admin
	// notifications.
	MarkRead(ctx context.Context, notificationID, userID string) error
}

// Enqueuer is the outbox producer side.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Dispatcher sends and lists notifications.
type Dispatcher struct {
	repo  Repository
	queue Enqueuer
	now   func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(repo Repository, queue Enqueuer) *Dispatcher {
	return &Dispatcher{repo: repo, queue: queue, now: time.Now}
}

// Notify schedules n for delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = id.New(id.Notification)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}
	if err := d.queue.Enqueue(ctx, TaskKind, n); err != nil {
		return errors.Wrap(err, "enqueue notification")
	}
	return nil
}

// Handle persists a notification delivered by the outbox.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return errors.Wrap(err, "decode notification")
	}
	if err := d.repo.Create(ctx, &n); err != nil {
		if errors.Is(err, apperr.ErrDuplicateKey) {
			return nil
		}
		return errors.Wrap(err, "store notification")
	}
	return nil
}

// ListForUser returns a page of the user's notifications, newest first.
func (d *Dispatcher) ListForUser(ctx context.Context, userID string, p paging.Params) ([]Notification, paging.Meta, error) {
	items, total, err := d.repo.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list notifications")
	}
	return items, paging.NewMeta(p, total), nil
}

// ListForAdmin returns a page of admin notifications, newest first.
func (d *Dispatcher) ListForAdmin(ctx context.Context, p paging.Params) ([]Notification, paging.Meta, error) {
	items, total, err := d.repo.ListForAdmin(ctx, p)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list admin notifications")
	}
	return items, paging.NewMeta(p, total), nil
}

// MarkRead marks a notification as read for its owner.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := d.repo.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "mark notification read")
	}
	return nil
}
