package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Handler processes one task payload. Returning an error schedules a retry.
type Handler func(ctx context.Context, payload []byte) error

// Config tunes the dispatcher loop.
type Config struct {
	PollInterval   time.Duration
	Lease          time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter is the backoff randomization factor in [0, 1).
	Jitter float64
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	return c
}

// Dispatcher claims and runs tasks.
type Dispatcher struct {
	store    Store
	cfg      Config
	lg       *zap.Logger
	handlers map[string]Handler
	now      func() time.Time

	processed metric.Int64Counter
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithMeterProvider sets the meter provider for task counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) {
		d.processed = newCounter(mp)
	}
}

func newCounter(mp metric.MeterProvider) metric.Int64Counter {
	c, err := mp.Meter("github.com/xenking/extraweb/internal/outbox").Int64Counter("outbox.tasks",
		metric.WithDescription("Outbox tasks processed, by kind and outcome"),
	)
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

// NewDispatcher creates a Dispatcher over store.
func NewDispatcher(store Store, cfg Config, lg *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		cfg:      cfg.withDefaults(),
		lg:       lg,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.processed == nil {
		d.processed = newCounter(otel.GetMeterProvider())
	}
	return d
}

// Handle registers h for tasks of kind. It must be called before Run.
func (d *Dispatcher) Handle(kind string, h Handler) {
	d.handlers[kind] = h
}

// Run processes tasks until ctx is cancelled. Due tasks are drained back to
// back; the loop sleeps PollInterval once the queue is empty or a store
// call fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		for {
			ok, err := d.ProcessOne(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.lg.Error("Outbox claim failed", zap.Error(err))
				break
			}
			if !ok {
				break
			}
		}
		timer.Reset(d.cfg.PollInterval)
	}
}

// ProcessOne claims and runs a single task. It reports false when nothing
// was due.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	now := d.now().UTC()
	t, err := d.store.Claim(ctx, now, d.cfg.Lease)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return false, nil
		}
		return false, errors.Wrap(err, "claim task")
	}

	lg := d.lg.With(
		zap.String("task_id", t.ID),
		zap.String("kind", t.Kind),
		zap.Int("attempt", t.Attempts),
	)

	if t.Attempts > d.cfg.MaxAttempts {
		d.bury(ctx, lg, t, "lease expired on the last attempt")
		return true, nil
	}
	h, ok := d.handlers[t.Kind]
	if !ok {
		d.bury(ctx, lg, t, "no handler for task kind")
		return true, nil
	}

	runErr := h(ctx, t.Payload)
	if runErr == nil {
		if err := d.store.Complete(ctx, t, d.now().UTC()); err != nil {
			d.storeFailed(lg, "Complete task", err)
		}
		d.record(ctx, t.Kind, "done")
		return true, nil
	}

	if t.Attempts >= d.cfg.MaxAttempts {
		d.bury(ctx, lg, t, runErr.Error())
		return true, nil
	}

	next := d.now().UTC().Add(d.Delay(t.Attempts))
	lg.Warn("Task failed, retrying", zap.Error(runErr), zap.Time("next_attempt", next))
	if err := d.store.Retry(ctx, t, next, runErr.Error()); err != nil {
		d.storeFailed(lg, "Reschedule task", err)
	}
	d.record(ctx, t.Kind, "retry")
	return true, nil
}

func (d *Dispatcher) bury(ctx context.Context, lg *zap.Logger, t *Task, reason string) {
	lg.Error("Task dead-lettered", zap.String("reason", reason))
	if err := d.store.Bury(ctx, t, reason); err != nil {
		d.storeFailed(lg, "Bury task", err)
	}
	d.record(ctx, t.Kind, "dead")
}

// storeFailed logs a failed state transition. A lost lease means another
// worker owns the task now; any other failure leaves the lease to expire so
// the task runs again.
func (d *Dispatcher) storeFailed(lg *zap.Logger, msg string, err error) {
	if errors.Is(err, ErrLeaseLost) {
		lg.Warn(msg+": lease lost")
		return
	}
	lg.Error(msg, zap.Error(err))
}

func (d *Dispatcher) record(ctx context.Context, kind, outcome string) {
	d.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// Delay returns the wait before the given (1-based) retry attempt.
func (d *Dispatcher) Delay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.MaxInterval = d.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = d.cfg.Jitter
	b.Reset()

	var next time.Duration
	for range attempt {
		next = b.NextBackOff()
	}
	return next
}
