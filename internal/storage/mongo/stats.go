package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/stats"
	"github.com/xenking/extraweb/internal/domain/testimonial"
)

// Stats implements stats.Source.
type Stats struct {
	s *Store
}

var _ stats.Source = (*Stats)(nil)

// Stats returns the dashboard counter source.
func (s *Store) Stats() *Stats { return &Stats{s: s} }

var notDeleted = bson.M{"$ne": true}

func (r *Stats) count(ctx context.Context, name string, filter bson.M) (int64, error) {
	n, err := r.s.col(name).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: count %s: %w", name, err)
	}
	return n, nil
}

func (r *Stats) CountActiveUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, colUsers, bson.M{"isDeleted": notDeleted})
}

func (r *Stats) CountProducts(ctx context.Context, t product.Type, approvedOnly bool) (int64, error) {
	name, err := productCollection(t)
	if err != nil {
		return 0, err
	}
	filter := bson.M{"isDeleted": notDeleted}
	if approvedOnly {
		filter["status"] = product.StatusApproved
	}
	return r.count(ctx, name, filter)
}

func (r *Stats) CountEnrollments(ctx context.Context) (int64, error) {
	return r.count(ctx, colEnrollments, bson.M{})
}

func (r *Stats) CountDownloads(ctx context.Context) (int64, error) {
	return r.count(ctx, colDownloads, bson.M{})
}

func (r *Stats) Ratings(ctx context.Context) (float64, int64, error) {
	cur, err := r.s.col(colTestimonials).Aggregate(ctx, bson.A{
		bson.M{"$match": bson.M{"status": string(testimonial.StatusApproved)}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("extraweb/mongo: aggregate ratings: %w", err)
	}
	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int64   `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("extraweb/mongo: aggregate ratings: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Avg, rows[0].Count, nil
}
