// Package mongo implements the domain repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
)

// Collection name constants.
const (
	colOrders         = "orders"
	colUsers          = "users"
	colWebsites       = "websites"
	colSoftware       = "softwares"
	colCourses        = "courses"
	colEnrollments    = "enrollments"
	colDownloads      = "downloads"
	colCoupons        = "coupons"
	colCouponUsages   = "coupon_usages"
	colTestimonials   = "testimonials"
	colCustomizations = "customization_requests"
	colNotifications  = "notifications"
	colTasks          = "tasks"
)

// Store owns the client and database handle. It is created once by the
// application and passed to every repository.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and selects database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("extraweb/mongo: connect: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("extraweb/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("extraweb/mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func isDupKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// dupKey maps a unique index violation to apperr.DuplicateKeyError.
func dupKey(err error, field string) error {
	if isDupKey(err) {
		return &apperr.DuplicateKeyError{Field: field, Err: err}
	}
	return err
}

// page applies skip, limit and sort to a find.
func page(p paging.Params, sort bson.D) *options.FindOptionsBuilder {
	p = p.Normalize()
	return options.Find().
		SetSort(sort).
		SetSkip(p.Skip()).
		SetLimit(int64(p.Limit))
}

// regex matches s case-insensitively as a literal substring.
func regex(s string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(s)), Options: "i"}
}

// decCodec converts between decimal.Decimal and Decimal128, keeping the
// first error.
type decCodec struct {
	err error
}

func (c *decCodec) enc(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("extraweb/mongo: encode decimal %s: %w", d.String(), err)
	}
	return v
}

func (c *decCodec) dec(v bson.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("extraweb/mongo: decode decimal %s: %w", v.String(), err)
	}
	return d
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOrders: {
			{
				Keys:    bson.D{{Key: "orderNumber", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "orderDate", Value: -1}}},
			{Keys: bson.D{{Key: "paymentStatus", Value: 1}, {Key: "orderDate", Value: -1}}},
			{Keys: bson.D{{Key: "isInstallment", Value: 1}, {Key: "orderDate", Value: -1}}},
		},
		colCoupons: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "showInTopHeader", Value: 1}}},
		},
		colCouponUsages: {
			{Keys: bson.D{{Key: "coupon", Value: 1}, {Key: "user", Value: 1}}},
			{
				Keys:    bson.D{{Key: "coupon", Value: 1}, {Key: "user", Value: 1}, {Key: "slot", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"slot": bson.M{"$gt": 0}}),
			},
			{
				Keys:    bson.D{{Key: "coupon", Value: 1}, {Key: "order", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colEnrollments: {
			{
				Keys:    bson.D{{Key: "user", Value: 1}, {Key: "course", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "order", Value: 1}}},
		},
		colDownloads: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "order", Value: 1}}},
		},
		colTestimonials: {
			{Keys: bson.D{{Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "isFeatured", Value: 1}}},
			{Keys: bson.D{{Key: "order", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colCustomizations: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "overallStatus", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "forUser", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "forAdmin", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colTasks: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "lockedUntil", Value: 1}}},
		},
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
