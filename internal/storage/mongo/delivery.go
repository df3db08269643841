package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/delivery"
)

type downloadModel struct {
	ID          string    `bson:"_id"`
	User        string    `bson:"user"`
	Order       string    `bson:"order"`
	Product     string    `bson:"product"`
	ProductType string    `bson:"productType"`
	Title       string    `bson:"title"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type enrollmentModel struct {
	ID        string    `bson:"_id"`
	User      string    `bson:"user"`
	Course    string    `bson:"course"`
	Order     string    `bson:"order"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Downloads implements delivery.DownloadRepository.
type Downloads struct {
	s *Store
}

var _ delivery.DownloadRepository = (*Downloads)(nil)

// Downloads returns the download grant repository.
func (s *Store) Downloads() *Downloads { return &Downloads{s: s} }

func (r *Downloads) Create(ctx context.Context, d *delivery.Download) error {
	m := &downloadModel{
		ID:          d.ID,
		User:        d.UserID,
		Order:       d.OrderID,
		Product:     d.ProductID,
		ProductType: string(d.ProductType),
		Title:       d.Title,
		CreatedAt:   d.CreatedAt,
	}
	if _, err := r.s.col(colDownloads).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create download: %w", dupKey(err, "download"))
	}
	return nil
}

func (r *Downloads) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	res, err := r.s.col(colDownloads).DeleteMany(ctx, bson.M{"order": orderID})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: delete downloads: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *Downloads) Count(ctx context.Context) (int64, error) {
	n, err := r.s.col(colDownloads).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: count downloads: %w", err)
	}
	return n, nil
}

// Enrollments implements delivery.EnrollmentRepository.
type Enrollments struct {
	s *Store
}

var _ delivery.EnrollmentRepository = (*Enrollments)(nil)

// Enrollments returns the enrollment repository.
func (s *Store) Enrollments() *Enrollments { return &Enrollments{s: s} }

func (r *Enrollments) Enroll(ctx context.Context, e *delivery.Enrollment) error {
	m := &enrollmentModel{
		ID:        e.ID,
		User:      e.UserID,
		Course:    e.CourseID,
		Order:     e.OrderID,
		CreatedAt: e.CreatedAt,
	}
	if _, err := r.s.col(colEnrollments).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: enroll: %w", dupKey(err, "enrollment"))
	}
	return nil
}

func (r *Enrollments) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	res, err := r.s.col(colEnrollments).DeleteMany(ctx, bson.M{"order": orderID})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: delete enrollments: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *Enrollments) Count(ctx context.Context) (int64, error) {
	n, err := r.s.col(colEnrollments).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("extraweb/mongo: count enrollments: %w", err)
	}
	return n, nil
}
