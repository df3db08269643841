package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
)

type mockRepo struct {
	stored    []*Notification
	createErr error
	readErr   error
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.stored = append(m.stored, n)
	return nil
}

func (m *mockRepo) ListForUser(_ context.Context, userID string, _ paging.Params) ([]Notification, int64, error) {
	var out []Notification
	for _, n := range m.stored {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockRepo) ListForAdmin(_ context.Context, _ paging.Params) ([]Notification, int64, error) {
	var out []Notification
	for _, n := range m.stored {
		if n.ForAdmin {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockRepo) MarkRead(_ context.Context, _, _ string) error {
	return m.readErr
}

type mockQueue struct {
	kind    string
	payload any
	err     error
}

func (m *mockQueue) Enqueue(_ context.Context, kind string, payload any) error {
	m.kind = kind
	m.payload = payload
	return m.err
}

func TestDispatcher_Notify(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	q := &mockQueue{}
	d := NewDispatcher(&mockRepo{}, q)
	d.now = func() time.Time { return fixedNow }

	err := d.Notify(context.Background(), Notification{UserID: "usr_1", Kind: KindOrder, Title: "Order Placed"})
	require.NoError(t, err)

	assert.Equal(t, TaskKind, q.kind)
	n, ok := q.payload.(Notification)
	require.True(t, ok)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, fixedNow, n.CreatedAt)
}

func TestDispatcher_NotifyQueueError(t *testing.T) {
	d := NewDispatcher(&mockRepo{}, &mockQueue{err: errors.New("db down")})

	err := d.Notify(context.Background(), Notification{UserID: "usr_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue notification")
}

func TestDispatcher_Handle(t *testing.T) {
	repo := &mockRepo{}
	d := NewDispatcher(repo, &mockQueue{})

	payload, err := json.Marshal(Notification{ID: "ntf_1", ForAdmin: true, Title: "Installment Submitted"})
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), payload))
	require.Len(t, repo.stored, 1)
	assert.Equal(t, "ntf_1", repo.stored[0].ID)

	items, meta, err := d.ListForAdmin(context.Background(), paging.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), meta.Total)
}

func TestDispatcher_HandleRedelivery(t *testing.T) {
	repo := &mockRepo{createErr: &apperr.DuplicateKeyError{Field: "id"}}
	d := NewDispatcher(repo, &mockQueue{})

	require.NoError(t, d.Handle(context.Background(), []byte(`{"id":"ntf_1"}`)))
}

func TestDispatcher_HandleBadPayload(t *testing.T) {
	d := NewDispatcher(&mockRepo{}, &mockQueue{})

	require.Error(t, d.Handle(context.Background(), []byte(`{`)))
}

func TestDispatcher_MarkRead(t *testing.T) {
	d := NewDispatcher(&mockRepo{readErr: ErrNotFound}, &mockQueue{})

	err := d.MarkRead(context.Background(), "ntf_1", "usr_1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
