package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xenking/extraweb/internal/outbox"
)

type taskModel struct {
	ID            string    `bson:"_id"`
	Kind          string    `bson:"kind"`
	Payload       []byte    `bson:"payload"`
	Status        string    `bson:"status"`
	Attempts      int       `bson:"attempts"`
	NextAttemptAt time.Time `bson:"nextAttemptAt"`
	LockedUntil   time.Time `bson:"lockedUntil"`
	LastError     string    `bson:"lastError,omitempty"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// Tasks implements outbox.Store.
type Tasks struct {
	s *Store
}

var _ outbox.Store = (*Tasks)(nil)

// Tasks returns the outbox task store.
func (s *Store) Tasks() *Tasks { return &Tasks{s: s} }

func (r *Tasks) Insert(ctx context.Context, t *outbox.Task) error {
	m := &taskModel{
		ID:            t.ID,
		Kind:          t.Kind,
		Payload:       t.Payload,
		Status:        string(t.Status),
		Attempts:      t.Attempts,
		NextAttemptAt: t.NextAttemptAt,
		LockedUntil:   t.LockedUntil,
		LastError:     t.LastError,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if _, err := r.s.col(colTasks).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: insert task: %w", dupKey(err, "id"))
	}
	return nil
}

func (r *Tasks) Claim(ctx context.Context, now time.Time, lease time.Duration) (*outbox.Task, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": string(outbox.StatusPending), "nextAttemptAt": bson.M{"$lte": now}},
		bson.M{"status": string(outbox.StatusProcessing), "lockedUntil": bson.M{"$lte": now}},
	}}
	update := bson.M{
		"$set": bson.M{
			"status":      string(outbox.StatusProcessing),
			"lockedUntil": now.Add(lease),
			"updatedAt":   now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "nextAttemptAt", Value: 1}}).
		SetReturnDocument(options.After)

	var m taskModel
	if err := r.s.col(colTasks).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, outbox.ErrEmpty
		}
		return nil, fmt.Errorf("extraweb/mongo: claim task: %w", err)
	}
	return &outbox.Task{
		ID:            m.ID,
		Kind:          m.Kind,
		Payload:       m.Payload,
		Status:        outbox.Status(m.Status),
		Attempts:      m.Attempts,
		NextAttemptAt: m.NextAttemptAt,
		LockedUntil:   m.LockedUntil,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// set updates t only while it is still held under the lease it was claimed
// with. Mongo stores times at millisecond precision and Claim returns the
// stored value, so lockedUntil compares exactly.
func (r *Tasks) set(ctx context.Context, t *outbox.Task, fields bson.M) error {
	filter := bson.M{
		"_id":         t.ID,
		"status":      string(outbox.StatusProcessing),
		"lockedUntil": t.LockedUntil,
	}
	res, err := r.s.col(colTasks).UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: update task %s: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		return outbox.ErrLeaseLost
	}
	return nil
}

func (r *Tasks) Complete(ctx context.Context, t *outbox.Task, now time.Time) error {
	return r.set(ctx, t, bson.M{
		"status":    string(outbox.StatusDone),
		"updatedAt": now,
	})
}

func (r *Tasks) Retry(ctx context.Context, t *outbox.Task, next time.Time, lastErr string) error {
	return r.set(ctx, t, bson.M{
		"status":        string(outbox.StatusPending),
		"nextAttemptAt": next,
		"lastError":     lastErr,
		"updatedAt":     time.Now().UTC(),
	})
}

func (r *Tasks) Bury(ctx context.Context, t *outbox.Task, lastErr string) error {
	return r.set(ctx, t, bson.M{
		"status":    string(outbox.StatusDead),
		"lastError": lastErr,
		"updatedAt": time.Now().UTC(),
	})
}

func (r *Tasks) CountByStatus(ctx context.Context, status outbox.Status) (int64, error) {
	n, err := r.s.col(colTasks).CountDocuments(ctx, bson.M{"status": string(status)})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: count tasks: %w", err)
	}
	return n, nil
}
