package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/notification"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type notificationModel struct {
	ID        string    `bson:"_id"`
	ForUser   string    `bson:"forUser,omitempty"`
	ForAdmin  bool      `bson:"forAdmin"`
	Kind      string    `bson:"type"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Order     string    `bson:"order,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Notifications implements notification.Repository.
type Notifications struct {
	s *Store
}

var _ notification.Repository = (*Notifications)(nil)

// Notifications returns the notification repository.
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

func (r *Notifications) Create(ctx context.Context, n *notification.Notification) error {
	m := &notificationModel{
		ID:        n.ID,
		ForUser:   n.UserID,
		ForAdmin:  n.ForAdmin,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		Order:     n.OrderID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if _, err := r.s.col(colNotifications).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create notification: %w", dupKey(err, "id"))
	}
	return nil
}

func (r *Notifications) list(ctx context.Context, filter bson.M, p paging.Params) ([]notification.Notification, int64, error) {
	col := r.s.col(colNotifications)
	cur, err := col.Find(ctx, filter, page(p, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list notifications: %w", err)
	}
	var models []notificationModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list notifications: %w", err)
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: count notifications: %w", err)
	}
	out := make([]notification.Notification, 0, len(models))
	for _, m := range models {
		out = append(out, notification.Notification{
			ID:        m.ID,
			UserID:    m.ForUser,
			ForAdmin:  m.ForAdmin,
			Kind:      notification.Kind(m.Kind),
			Title:     m.Title,
			Message:   m.Message,
			OrderID:   m.Order,
			Read:      m.Read,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, total, nil
}

func (r *Notifications) ListForUser(ctx context.Context, userID string, p paging.Params) ([]notification.Notification, int64, error) {
	return r.list(ctx, bson.M{"forUser": userID}, p)
}

func (r *Notifications) ListForAdmin(ctx context.Context, p paging.Params) ([]notification.Notification, int64, error) {
	return r.list(ctx, bson.M{"forAdmin": true}, p)
}

func (r *Notifications) MarkRead(ctx context.Context, notificationID, userID string) error {
	filter := bson.M{"_id": notificationID}
	if userID == "" {
		filter["forAdmin"] = true
	} else {
		filter["forUser"] = userID
	}
	res, err := r.s.col(colNotifications).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return notification.ErrNotFound
	}
	return nil
}
