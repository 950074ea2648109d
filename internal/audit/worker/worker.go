// Package worker relays outbox rows to their downstream sink. The relay is
// the asynchronous half of the transactional outbox: transitions commit
// state plus outbox rows atomically, and delivery happens here with retry,
// off the request's critical path.
package worker

import (
	"context"
	"log/slog"
	"time"

	"civreg/internal/audit"
	"civreg/internal/platform/metrics"
)

// Publisher delivers one outbox payload. kafka.Client satisfies this; tests
// and broker-less deployments use lightweight substitutes.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// LogPublisher writes events to the log instead of a broker. Used when Kafka
// is not configured so audit delivery is still observable in dev.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.Logger.InfoContext(ctx, "audit event",
		"topic", topic,
		"key", key,
		"payload", string(value),
	)
	return nil
}

// Relay polls the outbox and publishes undelivered rows.
type Relay struct {
	outbox    audit.OutboxStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

// WithBatchSize overrides how many rows one poll drains.
func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay constructs a Relay.
func NewRelay(outbox audit.OutboxStore, publisher Publisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. Publish failures are logged and
// counted, never fatal: the rows stay unpublished and the next tick retries.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of undelivered rows. Exported so tests and
// shutdown paths can flush without the ticker.
func (r *Relay) Drain(ctx context.Context) error {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	delivered := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if err := r.publisher.Publish(ctx, entry.Topic, []byte(entry.Key), entry.Payload); err != nil {
			// Stop at the first failure to preserve per-key ordering.
			r.logger.ErrorContext(ctx, "outbox publish failed",
				"outbox_id", entry.ID,
				"topic", entry.Topic,
				"error", err,
			)
			if r.metrics != nil {
				r.metrics.OutboxRelayFailures.Inc()
			}
			break
		}
		delivered = append(delivered, entry.ID)
	}

	if len(delivered) == 0 {
		return nil
	}
	return r.outbox.MarkPublished(ctx, delivered)
}
