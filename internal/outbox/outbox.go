// Package outbox is a persistent task queue for side effects that must
// survive failures: notifications and emails.
//
// Producers Enqueue tasks next to their primary write. A Dispatcher claims
// due tasks under a lease, runs the handler registered for the task kind and
// either completes the task or reschedules it with exponential backoff. A
// task whose lease expires (worker crash) becomes claimable again, so
// handlers run at least once and must tolerate repeats.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/id"
)

// ErrEmpty is returned by Store.Claim when no task is due.
var ErrEmpty = errors.New("no due tasks")

// ErrLeaseLost is returned by Store.Complete, Retry and Bury when the task is
// no longer held under the lease it was claimed with.
var ErrLeaseLost = errors.New("task lease lost")

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusDead       Status = "dead"
)

// Task is a unit of deferred work. Attempts counts claims, so a task whose
// worker keeps crashing still runs out of attempts.
type Task struct {
	ID            string
	Kind          string
	Payload       []byte
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LockedUntil   time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store persists tasks.
type Store interface {
	Insert(ctx context.Context, t *Task) error
	// Claim atomically picks the oldest due task (pending and due, or
	// processing with an expired lease), marks it processing until
	// now+lease, increments Attempts and returns it. It returns ErrEmpty
	// when nothing is due.
	Claim(ctx context.Context, now time.Time, lease time.Duration) (*Task, error)
	// Complete, Retry and Bury apply only while t is still processing under
	// the lease it was claimed with (t.LockedUntil); otherwise they return
	// ErrLeaseLost and change nothing.
	Complete(ctx context.Context, t *Task, now time.Time) error
	Retry(ctx context.Context, t *Task, next time.Time, lastErr string) error
	Bury(ctx context.Context, t *Task, lastErr string) error
	CountByStatus(ctx context.Context, status Status) (int64, error)
}

// Queue enqueues tasks.
type Queue struct {
	store Store
	now   func() time.Time
}

// NewQueue creates a Queue writing to store.
func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue stores a task of the given kind with payload encoded as JSON. The
// task is due immediately.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encode %s payload", kind)
	}
	now := q.now().UTC()
	t := &Task{
		ID:            id.New(id.Task),
		Kind:          kind,
		Payload:       data,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := q.store.Insert(ctx, t); err != nil {
		return errors.Wrapf(err, "enqueue %s", kind)
	}
	return nil
}
