package mail

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/user"
)

type mockMailer struct {
	sent []Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockUsers struct {
	byID map[string]*user.User
	err  error
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockQueue struct {
	kinds []string
}

func (m *mockQueue) Enqueue(_ context.Context, kind string, _ any) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

func newTestService(m *mockMailer) *Service {
	users := &mockUsers{byID: map[string]*user.User{
		"usr_1": {ID: "usr_1", FirstName: "Rahim", LastName: "Uddin", Email: "rahim@example.com"},
	}}
	return NewService(&mockQueue{}, m, users)
}

func TestService_HandleInvoice(t *testing.T) {
	m := &mockMailer{}
	s := newTestService(m)

	payload, err := json.Marshal(Invoice{
		OrderNumber: "EW-01ABC",
		UserID:      "usr_1",
		Items: []Line{
			{Title: "Shop Theme", Type: "website", Price: decimal.NewFromInt(1500)},
			{Title: "Go Course", Type: "course", Price: decimal.NewFromInt(500)},
		},
		Discount:       decimal.NewFromInt(200),
		Total:          decimal.NewFromInt(1800),
		PaymentMethod:  "manual",
		TransactionRef: "TX123",
		OrderDate:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, s.HandleInvoice(context.Background(), payload))
	require.Len(t, m.sent, 1)

	msg := m.sent[0]
	assert.Equal(t, "rahim@example.com", msg.To)
	assert.Equal(t, "Your ExtraWeb invoice EW-01ABC", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Rahim Uddin")
	assert.Contains(t, msg.Body, "- Shop Theme (website): 1500.00")
	assert.Contains(t, msg.Body, "Discount: -200.00")
	assert.Contains(t, msg.Body, "Total: 1800.00")
	assert.Contains(t, msg.Body, "Transaction: TX123")
	assert.Contains(t, msg.Body, "Date: 2025-06-15")
}

func TestService_HandleOrderPlaced(t *testing.T) {
	m := &mockMailer{}
	s := newTestService(m)

	payload, err := json.Marshal(OrderPlaced{
		OrderNumber:   "EW-02DEF",
		UserID:        "usr_1",
		Items:         []Line{{Title: "CRM", Price: decimal.NewFromInt(3000)}},
		Total:         decimal.NewFromInt(3000),
		IsInstallment: true,
		Installments:  3,
	})
	require.NoError(t, err)

	require.NoError(t, s.HandleOrderPlaced(context.Background(), payload))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].Body, "Payment plan: 3 installments")
}

func TestService_HandleUnknownRecipient(t *testing.T) {
	m := &mockMailer{}
	s := newTestService(m)

	require.NoError(t, s.HandleInvoice(context.Background(), []byte(`{"userId":"usr_missing"}`)))
	assert.Empty(t, m.sent)
}

func TestService_HandleMailerError(t *testing.T) {
	s := newTestService(&mockMailer{err: errors.New("broker down")})

	err := s.HandleInvoice(context.Background(), []byte(`{"userId":"usr_1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send mail")
}

func TestService_Queue(t *testing.T) {
	q := &mockQueue{}
	s := NewService(q, &mockMailer{}, &mockUsers{})

	require.NoError(t, s.QueueInvoice(context.Background(), Invoice{}))
	require.NoError(t, s.QueueOrderPlaced(context.Background(), OrderPlaced{}))
	assert.Equal(t, []string{KindInvoice, KindOrderPlaced}, q.kinds)
}
