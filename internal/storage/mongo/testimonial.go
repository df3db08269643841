package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/testimonial"
)

type testimonialModel struct {
	ID                  string    `bson:"_id"`
	ClientName          string    `bson:"clientName"`
	ClientNameBn        string    `bson:"clientNameBn,omitempty"`
	CompanyName         string    `bson:"companyName"`
	CompanyNameBn       string    `bson:"companyNameBn,omitempty"`
	Title               string    `bson:"title"`
	TitleBn             string    `bson:"titleBn,omitempty"`
	Type                string    `bson:"type"`
	VideoID             string    `bson:"videoId"`
	Description         string    `bson:"description,omitempty"`
	DescriptionBn       string    `bson:"descriptionBn,omitempty"`
	ClientImage         string    `bson:"clientImage,omitempty"`
	ClientDesignation   string    `bson:"clientDesignation,omitempty"`
	ClientDesignationBn string    `bson:"clientDesignationBn,omitempty"`
	Rating              int       `bson:"rating"`
	Status              string    `bson:"status"`
	IsFeatured          bool      `bson:"isFeatured"`
	Order               int       `bson:"order"`
	CreatedAt           time.Time `bson:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt"`
}

func toTestimonialModel(t *testimonial.Testimonial) *testimonialModel {
	return &testimonialModel{
		ID:                  t.ID,
		ClientName:          t.ClientName,
		ClientNameBn:        t.ClientNameBn,
		CompanyName:         t.CompanyName,
		CompanyNameBn:       t.CompanyNameBn,
		Title:               t.Title,
		TitleBn:             t.TitleBn,
		Type:                string(t.Type),
		VideoID:             t.VideoID,
		Description:         t.Description,
		DescriptionBn:       t.DescriptionBn,
		ClientImage:         t.ClientImage,
		ClientDesignation:   t.ClientDesignation,
		ClientDesignationBn: t.ClientDesignationBn,
		Rating:              t.Rating,
		Status:              string(t.Status),
		IsFeatured:          t.IsFeatured,
		Order:               t.Order,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func (m *testimonialModel) domain() testimonial.Testimonial {
	return testimonial.Testimonial{
		ID:                  m.ID,
		ClientName:          m.ClientName,
		ClientNameBn:        m.ClientNameBn,
		CompanyName:         m.CompanyName,
		CompanyNameBn:       m.CompanyNameBn,
		Title:               m.Title,
		TitleBn:             m.TitleBn,
		Type:                testimonial.Type(m.Type),
		VideoID:             m.VideoID,
		Description:         m.Description,
		DescriptionBn:       m.DescriptionBn,
		ClientImage:         m.ClientImage,
		ClientDesignation:   m.ClientDesignation,
		ClientDesignationBn: m.ClientDesignationBn,
		Rating:              m.Rating,
		Status:              testimonial.Status(m.Status),
		IsFeatured:          m.IsFeatured,
		Order:               m.Order,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// Testimonials implements testimonial.Repository.
type Testimonials struct {
	s *Store
}

var _ testimonial.Repository = (*Testimonials)(nil)

// Testimonials returns the testimonial repository.
func (s *Store) Testimonials() *Testimonials { return &Testimonials{s: s} }

func (r *Testimonials) Create(ctx context.Context, t *testimonial.Testimonial) error {
	if _, err := r.s.col(colTestimonials).InsertOne(ctx, toTestimonialModel(t)); err != nil {
		return fmt.Errorf("extraweb/mongo: create testimonial: %w", dupKey(err, "id"))
	}
	return nil
}

func (r *Testimonials) GetByID(ctx context.Context, testimonialID string) (*testimonial.Testimonial, error) {
	var m testimonialModel
	if err := r.s.col(colTestimonials).FindOne(ctx, bson.M{"_id": testimonialID}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, testimonial.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get testimonial: %w", err)
	}
	t := m.domain()
	return &t, nil
}

func (r *Testimonials) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]testimonial.Testimonial, error) {
	cur, err := r.s.col(colTestimonials).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("extraweb/mongo: list testimonials: %w", err)
	}
	var models []testimonialModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("extraweb/mongo: list testimonials: %w", err)
	}
	out := make([]testimonial.Testimonial, 0, len(models))
	for i := range models {
		out = append(out, models[i].domain())
	}
	return out, nil
}

func (r *Testimonials) List(ctx context.Context, f testimonial.Filter, p paging.Params) ([]testimonial.Testimonial, int64, error) {
	filter := bson.M{}
	if f.Search != "" {
		rx := regex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"clientName": rx},
			bson.M{"companyName": rx},
			bson.M{"title": rx},
		}
	}
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.IsFeatured != nil {
		filter["isFeatured"] = *f.IsFeatured
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "order"
	}
	dir := 1
	if f.Desc {
		dir = -1
	}
	sort := bson.D{{Key: sortBy, Value: dir}}
	if sortBy != "createdAt" {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}

	items, err := r.find(ctx, filter, page(p, sort))
	if err != nil {
		return nil, 0, err
	}
	total, err := r.s.col(colTestimonials).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: count testimonials: %w", err)
	}
	return items, total, nil
}

func (r *Testimonials) ListApproved(ctx context.Context, t testimonial.Type) ([]testimonial.Testimonial, error) {
	filter := bson.M{"status": string(testimonial.StatusApproved)}
	if t != "" {
		filter["type"] = string(t)
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "order", Value: 1},
		{Key: "createdAt", Value: -1},
	})
	return r.find(ctx, filter, opts)
}

func (r *Testimonials) Update(ctx context.Context, t *testimonial.Testimonial) error {
	m := toTestimonialModel(t)
	res, err := r.s.col(colTestimonials).ReplaceOne(ctx, bson.M{"_id": t.ID}, m)
	if err != nil {
		return fmt.Errorf("extraweb/mongo: update testimonial: %w", err)
	}
	if res.MatchedCount == 0 {
		return testimonial.ErrNotFound
	}
	return nil
}

func (r *Testimonials) Delete(ctx context.Context, testimonialID string) error {
	res, err := r.s.col(colTestimonials).DeleteOne(ctx, bson.M{"_id": testimonialID})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: delete testimonial: %w", err)
	}
	if res.DeletedCount == 0 {
		return testimonial.ErrNotFound
	}
	return nil
}
