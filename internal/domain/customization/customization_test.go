package customization

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type memRepo struct {
	byID map[string]Request
}

func (m *memRepo) Create(_ context.Context, r *Request) error {
	m.byID[r.ID] = clone(r)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, requestID string) (*Request, error) {
	r, ok := m.byID[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(&r)
	return &c, nil
}

func (m *memRepo) Update(_ context.Context, r *Request) error {
	if _, ok := m.byID[r.ID]; !ok {
		return ErrNotFound
	}
	m.byID[r.ID] = clone(r)
	return nil
}

func (m *memRepo) List(_ context.Context, f Filter, _ paging.Params) ([]Request, int64, error) {
	var out []Request
	for _, r := range m.byID {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.OverallStatus != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (m *memRepo) CountByStatus(_ context.Context) (StatusCounts, error) {
	var c StatusCounts
	for _, r := range m.byID {
		switch r.OverallStatus {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		}
	}
	return c, nil
}

func clone(r *Request) Request {
	c := *r
	c.Items = append([]Item(nil), r.Items...)
	return c
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	s := NewService(&memRepo{byID: map[string]Request{}})
	s.now = func() time.Time { return fixedNow }
	return s
}

func createRequest(t *testing.T, s *Service, items ...Item) *Request {
	t.Helper()
	r, err := s.Create(context.Background(), CreateInput{
		UserID:       "usr_1",
		OrderID:      "ord_1",
		WebsiteID:    "web_1",
		WebsiteTitle: "Shop Theme",
		Items:        items,
	})
	require.NoError(t, err)
	return r
}

func TestService_Create(t *testing.T) {
	s := newTestService()

	r := createRequest(t, s,
		Item{SectionName: "Hero", Description: "Change headline", IsCompleted: true},
		Item{SectionName: "Footer", EditType: EditContact},
	)

	assert.Equal(t, StatusPending, r.OverallStatus)
	assert.Equal(t, PriorityMedium, r.Priority)
	require.Len(t, r.Items, 2)
	assert.Equal(t, 1, r.Items[0].Number)
	assert.Equal(t, 2, r.Items[1].Number)
	assert.Equal(t, EditText, r.Items[0].EditType)
	assert.False(t, r.Items[0].IsCompleted)
}

func TestService_CreateValidation(t *testing.T) {
	s := newTestService()

	_, err := s.Create(context.Background(), CreateInput{UserID: "usr_1"})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = s.Create(context.Background(), CreateInput{
		UserID:   "usr_1",
		Priority: "asap",
		Items:    []Item{{SectionName: " ", EditType: "font"}},
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	paths := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{
		"orderId", "websiteId", "websiteTitle", "priority",
		"requestItems.0.sectionName", "requestItems.0.editType",
	}, paths)
}

func TestService_ToggleItem(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	r := createRequest(t, s, Item{SectionName: "Hero"}, Item{SectionName: "Footer"})

	got, err := s.ToggleItem(ctx, r.ID, 1, true, "done")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.OverallStatus)
	assert.Equal(t, "done", got.Items[0].AdminNote)
	require.NotNil(t, got.Items[0].CompletedAt)

	got, err = s.ToggleItem(ctx, r.ID, 2, true, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.OverallStatus)

	got, err = s.ToggleItem(ctx, r.ID, 1, false, "")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.OverallStatus)
	assert.Nil(t, got.Items[0].CompletedAt)
	assert.Equal(t, "done", got.Items[0].AdminNote)

	_, err = s.ToggleItem(ctx, r.ID, 9, true, "")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_AddItemsContinuesNumbering(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	r := createRequest(t, s, Item{SectionName: "Hero"}, Item{SectionName: "Footer"})

	_, err := s.CompleteAll(ctx, r.ID)
	require.NoError(t, err)

	got, err := s.AddItems(ctx, r.ID, "usr_1", []Item{{SectionName: "About"}})
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, 3, got.Items[2].Number)
	assert.Equal(t, StatusInProgress, got.OverallStatus)

	_, err = s.AddItems(ctx, r.ID, "usr_2", []Item{{SectionName: "About"}})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.AddItems(ctx, r.ID, "usr_1", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_UpdateAndCounts(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a := createRequest(t, s, Item{SectionName: "Hero"})
	createRequest(t, s, Item{SectionName: "Footer"})

	got, err := s.Update(ctx, a.ID, UpdateInput{Status: StatusInProgress, Priority: PriorityUrgent, AdminMessage: "On it"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.OverallStatus)
	assert.Equal(t, PriorityUrgent, got.Priority)
	assert.Equal(t, "On it", got.AdminMessage)

	_, err = s.Update(ctx, a.ID, UpdateInput{Status: "closed"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	items, meta, counts, err := s.ListAll(ctx, Filter{}, paging.Params{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), meta.Total)
	assert.Equal(t, StatusCounts{Pending: 1, InProgress: 1, Total: 2}, counts)

	mine, _, err := s.ListMine(ctx, "usr_1", StatusPending, paging.Params{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestService_GetOwnership(t *testing.T) {
	s := newTestService()
	r := createRequest(t, s, Item{SectionName: "Hero"})

	_, err := s.Get(context.Background(), r.ID, "usr_2")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(context.Background(), r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}
