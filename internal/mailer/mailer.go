// Package mailer hands rendered emails to a delivery transport.
//
// AMQP publishes each message as a persistent JSON job for the mail worker
// that owns SMTP credentials. Log writes messages to the logger and is used
// when no broker is configured.
package mailer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/mail"
)

// DefaultQueue is the queue mail jobs are published to.
const DefaultQueue = "extraweb.mail"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQP publishes messages to a durable queue.
type AMQP struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel

	// dial opens a channel and declares the queue; replaced in tests.
	dial func(ctx context.Context) (channel, error)
}

var _ mail.Mailer = (*AMQP)(nil)

// NewAMQP connects to the broker at url and declares queue. An empty queue
// selects DefaultQueue.
func NewAMQP(ctx context.Context, url, queue string) (*AMQP, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	p := &AMQP{url: url, queue: queue}
	p.dial = p.dialBroker

	ch, err := backoff.Retry(ctx, func() (channel, error) {
		return p.dial(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect amqp")
	}
	p.ch = ch
	return p, nil
}

func (p *AMQP) dialBroker(context.Context) (channel, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	return ch, nil
}

// Send publishes m. A closed channel is reopened once before giving up;
// the outbox retries anything beyond that.
func (p *AMQP) Send(ctx context.Context, m mail.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		zctx.From(ctx).Warn("AMQP channel closed, reconnecting")
		ch, err := p.dial(ctx)
		if err != nil {
			return errors.Wrap(err, "reconnect amqp")
		}
		p.ch = ch
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         "mail",
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return errors.Wrap(err, "publish mail")
	}
	return nil
}

// Healthy reports whether the broker connection is open.
func (p *AMQP) Healthy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return errors.New("amqp channel closed")
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Log writes messages to the context logger instead of sending them.
type Log struct{}

var _ mail.Mailer = Log{}

func (Log) Send(ctx context.Context, m mail.Message) error {
	zctx.From(ctx).Info("Mail",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_len", len(m.Body)),
	)
	return nil
}
