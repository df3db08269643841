// Package mail renders transactional emails and hands them to a Mailer.
//
// Emails are queued as outbox tasks and rendered when the task runs, so a
// mail transport outage delays messages instead of losing them.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/user"
)

// Outbox task kinds.
const (
	KindInvoice     = "mail.invoice"
	KindOrderPlaced = "mail.order_placed"
)

// Message is a rendered email.
type Message struct {
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Enqueuer is the outbox producer side.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// UserLookup resolves the recipient of a message.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Line is one purchased item as shown in an email.
type Line struct {
	Title string          `json:"title"`
	Type  string          `json:"type"`
	Price decimal.Decimal `json:"price"`
}

// Invoice is the payload of KindInvoice.
type Invoice struct {
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	UserID         string          `json:"userId"`
	Items          []Line          `json:"items"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"paymentMethod"`
	TransactionRef string          `json:"transactionRef"`
	OrderDate      time.Time       `json:"orderDate"`
}

// OrderPlaced is the payload of KindOrderPlaced.
type OrderPlaced struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        string          `json:"userId"`
	Items         []Line          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	IsInstallment bool            `json:"isInstallment"`
	Installments  int             `json:"installments"`
	OrderDate     time.Time       `json:"orderDate"`
}

var templates = template.Must(template.New("mail").Parse(`
{{define "invoice"}}Hello {{.Name}},

Thank you for your purchase. Your order {{.Data.OrderNumber}} is complete.

{{range .Data.Items}}- {{.Title}} ({{.Type}}): {{.Price.StringFixed 2}}
{{end}}{{if .Data.Discount.IsPositive}}Discount: -{{.Data.Discount.StringFixed 2}}
{{end}}Total: {{.Data.Total.StringFixed 2}}
Payment method: {{.Data.PaymentMethod}}{{if .Data.TransactionRef}}
Transaction: {{.Data.TransactionRef}}{{end}}
Date: {{.Data.OrderDate.Format "2006-01-02"}}

ExtraWeb
{{end}}
{{define "order_placed"}}Hello {{.Name}},

We received your order {{.Data.OrderNumber}}.

{{range .Data.Items}}- {{.Title}}: {{.Price.StringFixed 2}}
{{end}}Total: {{.Data.Total.StringFixed 2}}{{if .Data.IsInstallment}}
Payment plan: {{.Data.Installments}} installments{{end}}

We will let you know once your payment is verified.

ExtraWeb
{{end}}`))

type view struct {
	Name string
	Data any
}

// Service queues and renders emails.
type Service struct {
	queue  Enqueuer
	mailer Mailer
	users  UserLookup
}

// NewService creates a mail Service.
func NewService(queue Enqueuer, mailer Mailer, users UserLookup) *Service {
	return &Service{queue: queue, mailer: mailer, users: users}
}

// QueueInvoice schedules the invoice email for a delivered order.
func (s *Service) QueueInvoice(ctx context.Context, inv Invoice) error {
	if err := s.queue.Enqueue(ctx, KindInvoice, inv); err != nil {
		return errors.Wrap(err, "enqueue invoice")
	}
	return nil
}

// QueueOrderPlaced schedules the order confirmation email.
func (s *Service) QueueOrderPlaced(ctx context.Context, p OrderPlaced) error {
	if err := s.queue.Enqueue(ctx, KindOrderPlaced, p); err != nil {
		return errors.Wrap(err, "enqueue order placed mail")
	}
	return nil
}

// HandleInvoice renders and sends a queued invoice.
func (s *Service) HandleInvoice(ctx context.Context, payload []byte) error {
	var inv Invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return errors.Wrap(err, "decode invoice")
	}
	return s.send(ctx, inv.UserID, "invoice", "Your ExtraWeb invoice "+inv.OrderNumber, inv)
}

// HandleOrderPlaced renders and sends a queued order confirmation.
func (s *Service) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var p OrderPlaced
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode order placed mail")
	}
	return s.send(ctx, p.UserID, "order_placed", "Order "+p.OrderNumber+" received", p)
}

func (s *Service) send(ctx context.Context, userID, tmpl, subject string, data any) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Retrying cannot make the recipient appear.
			zctx.From(ctx).Warn("Mail recipient not found", zap.String("user_id", userID), zap.String("template", tmpl))
			return nil
		}
		return errors.Wrap(err, "lookup recipient")
	}
	if u.Email == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, view{Name: u.FullName(), Data: data}); err != nil {
		return errors.Wrapf(err, "render %s", tmpl)
	}

	msg := Message{
		To:      u.Email,
		Name:    u.FullName(),
		Subject: subject,
		Body:    strings.TrimSpace(buf.String()) + "\n",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "send mail")
	}
	return nil
}
