package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/customization"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type customizationItemModel struct {
	Number       int        `bson:"itemNumber"`
	SectionName  string     `bson:"sectionName"`
	EditType     string     `bson:"editType"`
	Description  string     `bson:"description"`
	Images       []string   `bson:"images,omitempty"`
	CurrentValue string     `bson:"currentValue,omitempty"`
	NewValue     string     `bson:"newValue,omitempty"`
	IsCompleted  bool       `bson:"isCompleted"`
	AdminNote    string     `bson:"adminNote,omitempty"`
	CompletedAt  *time.Time `bson:"completedAt,omitempty"`
}

type customizationModel struct {
	ID            string                   `bson:"_id"`
	User          string                   `bson:"user"`
	Order         string                   `bson:"order"`
	Website       string                   `bson:"website"`
	WebsiteTitle  string                   `bson:"websiteTitle"`
	Items         []customizationItemModel `bson:"requestItems"`
	OverallStatus string                   `bson:"overallStatus"`
	Priority      string                   `bson:"priority"`
	AdminMessage  string                   `bson:"adminMessage,omitempty"`
	CreatedAt     time.Time                `bson:"createdAt"`
	UpdatedAt     time.Time                `bson:"updatedAt"`
}

func toCustomizationModel(r *customization.Request) *customizationModel {
	items := make([]customizationItemModel, len(r.Items))
	for i, it := range r.Items {
		items[i] = customizationItemModel{
			Number:       it.Number,
			SectionName:  it.SectionName,
			EditType:     string(it.EditType),
			Description:  it.Description,
			Images:       it.Images,
			CurrentValue: it.CurrentValue,
			NewValue:     it.NewValue,
			IsCompleted:  it.IsCompleted,
			AdminNote:    it.AdminNote,
			CompletedAt:  it.CompletedAt,
		}
	}
	return &customizationModel{
		ID:            r.ID,
		User:          r.UserID,
		Order:         r.OrderID,
		Website:       r.WebsiteID,
		WebsiteTitle:  r.WebsiteTitle,
		Items:         items,
		OverallStatus: string(r.OverallStatus),
		Priority:      string(r.Priority),
		AdminMessage:  r.AdminMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (m *customizationModel) domain() customization.Request {
	items := make([]customization.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = customization.Item{
			Number:       it.Number,
			SectionName:  it.SectionName,
			EditType:     customization.EditType(it.EditType),
			Description:  it.Description,
			Images:       it.Images,
			CurrentValue: it.CurrentValue,
			NewValue:     it.NewValue,
			IsCompleted:  it.IsCompleted,
			AdminNote:    it.AdminNote,
			CompletedAt:  it.CompletedAt,
		}
	}
	return customization.Request{
		ID:            m.ID,
		UserID:        m.User,
		OrderID:       m.Order,
		WebsiteID:     m.Website,
		WebsiteTitle:  m.WebsiteTitle,
		Items:         items,
		OverallStatus: customization.Status(m.OverallStatus),
		Priority:      customization.Priority(m.Priority),
		AdminMessage:  m.AdminMessage,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// Customizations implements customization.Repository.
type Customizations struct {
	s *Store
}

var _ customization.Repository = (*Customizations)(nil)

// Customizations returns the customization request repository.
func (s *Store) Customizations() *Customizations { return &Customizations{s: s} }

func (r *Customizations) Create(ctx context.Context, req *customization.Request) error {
	if _, err := r.s.col(colCustomizations).InsertOne(ctx, toCustomizationModel(req)); err != nil {
		return fmt.Errorf("extraweb/mongo: create customization request: %w", dupKey(err, "id"))
	}
	return nil
}

func (r *Customizations) GetByID(ctx context.Context, requestID string) (*customization.Request, error) {
	var m customizationModel
	if err := r.s.col(colCustomizations).FindOne(ctx, bson.M{"_id": requestID}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, customization.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get customization request: %w", err)
	}
	req := m.domain()
	return &req, nil
}

func (r *Customizations) Update(ctx context.Context, req *customization.Request) error {
	res, err := r.s.col(colCustomizations).ReplaceOne(ctx, bson.M{"_id": req.ID}, toCustomizationModel(req))
	if err != nil {
		return fmt.Errorf("extraweb/mongo: update customization request: %w", err)
	}
	if res.MatchedCount == 0 {
		return customization.ErrNotFound
	}
	return nil
}

func (r *Customizations) List(ctx context.Context, f customization.Filter, p paging.Params) ([]customization.Request, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user"] = f.UserID
	}
	if f.Status != "" {
		filter["overallStatus"] = string(f.Status)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if f.Search != "" {
		rx := regex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"websiteTitle": rx},
			bson.M{"requestItems.sectionName": rx},
			bson.M{"requestItems.description": rx},
		}
	}

	col := r.s.col(colCustomizations)
	cur, err := col.Find(ctx, filter, page(p, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list customization requests: %w", err)
	}
	var models []customizationModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list customization requests: %w", err)
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: count customization requests: %w", err)
	}
	out := make([]customization.Request, 0, len(models))
	for i := range models {
		out = append(out, models[i].domain())
	}
	return out, total, nil
}

func (r *Customizations) CountByStatus(ctx context.Context) (customization.StatusCounts, error) {
	var out customization.StatusCounts
	cur, err := r.s.col(colCustomizations).Aggregate(ctx, bson.A{
		bson.M{"$group": bson.M{"_id": "$overallStatus", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return out, fmt.Errorf("extraweb/mongo: count customization requests: %w", err)
	}
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return out, fmt.Errorf("extraweb/mongo: count customization requests: %w", err)
	}
	for _, row := range rows {
		switch customization.Status(row.Status) {
		case customization.StatusPending:
			out.Pending = row.Count
		case customization.StatusInProgress:
			out.InProgress = row.Count
		case customization.StatusCompleted:
			out.Completed = row.Count
		}
		out.Total += row.Count
	}
	return out, nil
}
