package testimonial

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type memRepo struct {
	byID       map[string]*Testimonial
	lastFilter Filter
	lastType   Type
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*Testimonial{}}
}

func (m *memRepo) Create(_ context.Context, t *Testimonial) error {
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, testimonialID string) (*Testimonial, error) {
	t, ok := m.byID[testimonialID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f Filter, _ paging.Params) ([]Testimonial, int64, error) {
	m.lastFilter = f
	var out []Testimonial
	for _, t := range m.byID {
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (m *memRepo) ListApproved(_ context.Context, typ Type) ([]Testimonial, error) {
	m.lastType = typ
	var out []Testimonial
	for _, t := range m.byID {
		if t.Status == StatusApproved {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, t *Testimonial) error {
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, testimonialID string) error {
	if _, ok := m.byID[testimonialID]; !ok {
		return ErrNotFound
	}
	delete(m.byID, testimonialID)
	return nil
}

func validTestimonial() *Testimonial {
	return &Testimonial{
		ClientName:  "Karim Ahmed",
		CompanyName: "Acme Ltd",
		Title:       "Great storefront",
		VideoID:     "dQw4w9WgXcQ",
	}
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	s := NewService(repo)
	s.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return s, repo
}

func TestService_Create(t *testing.T) {
	s, repo := newTestService()
	tm := validTestimonial()

	require.NoError(t, s.Create(context.Background(), tm))

	assert.NotEmpty(t, tm.ID)
	assert.Equal(t, TypeTestimonial, tm.Type)
	assert.Equal(t, 5, tm.Rating)
	assert.Equal(t, StatusPending, tm.Status)
	assert.Contains(t, repo.byID, tm.ID)
}

func TestTestimonial_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *Testimonial)
		wantPath string
	}{
		{name: "short client name", mutate: func(t *Testimonial) { t.ClientName = "K" }, wantPath: "clientName"},
		{name: "long company", mutate: func(t *Testimonial) { t.CompanyName = strings.Repeat("a", 151) }, wantPath: "companyName"},
		{name: "short title", mutate: func(t *Testimonial) { t.Title = "Hi" }, wantPath: "title"},
		{name: "short video id", mutate: func(t *Testimonial) { t.VideoID = "abc" }, wantPath: "videoId"},
		{name: "rating too high", mutate: func(t *Testimonial) { t.Rating = 6 }, wantPath: "rating"},
		{name: "unknown type", mutate: func(t *Testimonial) { t.Type = "blog" }, wantPath: "type"},
		{name: "long bengali description", mutate: func(t *Testimonial) { t.DescriptionBn = strings.Repeat("অ", 501) }, wantPath: "descriptionBn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := validTestimonial()
			tm.Type, tm.Rating, tm.Status = TypeReview, 4, StatusApproved
			tt.mutate(tm)

			err := tm.Validate()
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Len(t, ve.Fields, 1)
			assert.Equal(t, tt.wantPath, ve.Fields[0].Path)
		})
	}
}

func TestService_Moderation(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	tm := validTestimonial()
	require.NoError(t, s.Create(ctx, tm))

	got, err := s.SetStatus(ctx, tm.ID, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	_, err = s.SetStatus(ctx, tm.ID, "published")
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err = s.ToggleFeatured(ctx, tm.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFeatured)
	got, err = s.ToggleFeatured(ctx, tm.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFeatured)

	public, err := s.Public(ctx, TypeReview)
	require.NoError(t, err)
	assert.Len(t, public, 1)
}

func TestService_Update(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	tm := validTestimonial()
	require.NoError(t, s.Create(ctx, tm))

	got, err := s.Update(ctx, tm.ID, func(t *Testimonial) { t.Order = 3 })
	require.NoError(t, err)
	assert.Equal(t, 3, got.Order)

	_, err = s.Update(ctx, tm.ID, func(t *Testimonial) { t.Rating = 0 })
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.Update(ctx, "tst_missing", func(*Testimonial) {})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_List(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, validTestimonial()))

	items, meta, err := s.List(ctx, Filter{Search: "acme"}, paging.Params{Page: 1, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), meta.TotalPages)
	assert.Equal(t, "order", repo.lastFilter.SortBy)

	_, _, err = s.List(ctx, Filter{SortBy: "password"}, paging.Params{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_Delete(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	tm := validTestimonial()
	require.NoError(t, s.Create(ctx, tm))

	require.NoError(t, s.Delete(ctx, tm.ID))
	require.ErrorIs(t, s.Delete(ctx, tm.ID), ErrNotFound)
}
