package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/product"
)

// productModel holds the catalog fields this service reads. Listings carry
// many more fields owned by the catalog service; updates here only touch
// counters.
type productModel struct {
	ID        string          `bson:"_id"`
	Title     string          `bson:"title"`
	Price     bson.Decimal128 `bson:"price"`
	Image     string          `bson:"image,omitempty"`
	Status    string          `bson:"status,omitempty"`
	IsDeleted bool            `bson:"isDeleted"`
	CreatedAt time.Time       `bson:"createdAt"`
}

func productCollection(t product.Type) (string, error) {
	switch t {
	case product.TypeWebsite:
		return colWebsites, nil
	case product.TypeSoftware:
		return colSoftware, nil
	case product.TypeCourse:
		return colCourses, nil
	default:
		return "", fmt.Errorf("extraweb/mongo: unknown product type %q", t)
	}
}

// Products implements product.Repository over the websites, softwares and
// courses collections.
type Products struct {
	s *Store
}

var _ product.Repository = (*Products)(nil)

// Products returns the catalog repository.
func (s *Store) Products() *Products { return &Products{s: s} }

func (r *Products) GetByID(ctx context.Context, t product.Type, productID string) (*product.Product, error) {
	name, err := productCollection(t)
	if err != nil {
		return nil, product.ErrNotFound
	}
	var m productModel
	err = r.s.col(name).FindOne(ctx, bson.M{"_id": productID, "isDeleted": bson.M{"$ne": true}}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get %s: %w", t, err)
	}
	var dc decCodec
	p := &product.Product{
		ID:        m.ID,
		Type:      t,
		Title:     m.Title,
		Price:     dc.dec(m.Price),
		Image:     m.Image,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
	return p, dc.err
}

func (r *Products) Create(ctx context.Context, p *product.Product) error {
	name, err := productCollection(p.Type)
	if err != nil {
		return err
	}
	var dc decCodec
	m := &productModel{
		ID:        p.ID,
		Title:     p.Title,
		Price:     dc.enc(p.Price),
		Image:     p.Image,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
	if dc.err != nil {
		return dc.err
	}
	if _, err := r.s.col(name).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create %s: %w", p.Type, dupKey(err, "id"))
	}
	return nil
}

func (r *Products) inc(ctx context.Context, name, productID, field string) error {
	res, err := r.s.col(name).UpdateOne(ctx, bson.M{"_id": productID}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: increment %s.%s: %w", name, field, err)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *Products) IncrementSales(ctx context.Context, t product.Type, productID string) error {
	name, err := productCollection(t)
	if err != nil {
		return err
	}
	return r.inc(ctx, name, productID, "salesCount")
}

func (r *Products) IncrementEnrollments(ctx context.Context, courseID string) error {
	return r.inc(ctx, colCourses, courseID, "totalEnrollments")
}

func (r *Products) ResetMetrics(ctx context.Context) (*product.ResetResult, error) {
	update := bson.M{"$set": bson.M{
		"rating":      0,
		"reviewCount": 0,
		"salesCount":  0,
		"viewCount":   0,
		"likeCount":   0,
		"likedBy":     bson.A{},
	}}
	var out product.ResetResult
	for _, target := range []struct {
		name string
		n    *int64
	}{
		{colWebsites, &out.Websites},
		{colSoftware, &out.Software},
	} {
		res, err := r.s.col(target.name).UpdateMany(ctx, bson.M{}, update)
		if err != nil {
			return nil, fmt.Errorf("extraweb/mongo: reset %s metrics: %w", target.name, err)
		}
		*target.n = res.ModifiedCount
	}
	return &out, nil
}
