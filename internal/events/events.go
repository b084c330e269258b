// Package events publishes ledger domain events to an optional sink.
//
// Publishing happens after the ledger transaction commits and is best
// effort: a failed publish is logged and counted, never returned to the
// client.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/colloil/colloil/internal/metrics"
)

// Event types.
const (
	TypeUserRegistered   = "user.registered"
	TypeCourierRequested = "courier.requested"
	TypeCouponActivated  = "coupon.activated"
)

// PublishTimeout is the max time to wait for the sink.
const PublishTimeout = 2 * time.Second

// Event is a single ledger fact.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New builds an event with a fresh time-sortable id.
func New(eventType, userID string, occurredAt time.Time, data map[string]any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: occurredAt.UTC(),
		Data:       data,
	}
}

// Sink delivers events to an external system.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// NoopSink discards events.
type NoopSink struct{}

// Send is a no-op.
func (NoopSink) Send(context.Context, Event) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }

// Publisher sends events to a Sink without blocking the caller.
type Publisher struct {
	sink        Sink
	logger      *slog.Logger
	metrics     metrics.Recorder
	timeout     time.Duration
	maxAttempts int
	delays      []time.Duration

	// mu guards closed so that wg.Add never races with Close's wg.Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewPublisher creates a Publisher. A nil sink discards events.
func NewPublisher(sink Sink, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if sink == nil {
		sink = NoopSink{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		sink:        sink,
		logger:      logger.With("component", "events.publisher"),
		metrics:     recorder,
		timeout:     PublishTimeout,
		maxAttempts: DefaultMaxAttempts,
		delays:      defaultRetryDelays,
		done:        make(chan struct{}),
	}
}

// Publish sends an event synchronously, once.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if err := p.send(ctx, event); err != nil {
		p.metrics.IncEventPublished(metrics.PublishDropped)
		return err
	}
	p.metrics.IncEventPublished(metrics.PublishSuccess)
	return nil
}

func (p *Publisher) send(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.sink.Send(ctx, event)
}

// PublishAsync publishes without blocking the caller, retrying with backoff.
// Errors are logged but not returned (fire-and-forget). A nil Publisher drops the event.
// Pending retries are abandoned once Close is called, and events published
// after Close are dropped.
func (p *Publisher) PublishAsync(event Event) {
	if p == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.metrics.IncEventPublished(metrics.PublishDropped)
		p.logger.Warn("publisher closed, dropping event",
			"event_type", event.Type,
			"event_id", event.ID,
		)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		err := p.sendWithRetry(event)
		if err != nil {
			p.metrics.IncEventPublished(metrics.PublishDropped)
			p.logger.Warn("failed to publish event",
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err,
			)
			return
		}

		p.metrics.IncEventPublished(metrics.PublishSuccess)
		p.logger.Debug("event published",
			"event_type", event.Type,
			"event_id", event.ID,
		)
	}()
}

func (p *Publisher) sendWithRetry(event Event) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = p.send(context.Background(), event); err == nil {
			return nil
		}
		if isExhausted(attempt+1, p.maxAttempts) {
			return err
		}

		timer := time.NewTimer(nextRetryDelay(p.delays, attempt))
		select {
		case <-p.done:
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// Close abandons pending retries, waits for in-flight publishes and closes the sink.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return p.sink.Close()
}
