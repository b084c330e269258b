package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloil/colloil/internal/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (s *recordingSink) Send(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	e := New(TypeCourierRequested, "u1", at, map[string]any{"oil_liters": 2.5})

	assert.Len(t, e.ID, 26)
	assert.Equal(t, TypeCourierRequested, e.Type)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.True(t, e.OccurredAt.Equal(at))

	other := New(TypeCourierRequested, "u1", at, nil)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestPublisher_AsyncDelivers(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)

	for i := 0; i < 5; i++ {
		p.PublishAsync(New(TypeUserRegistered, "u1", time.Now(), nil))
	}
	require.NoError(t, p.Close())

	assert.Len(t, sink.events, 5)
	assert.True(t, sink.closed)
	assert.Equal(t, uint64(5), rec.Snapshot().EventsPublished)
}

func TestPublisher_FailureIsCounted(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("broker down")}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)

	err := p.Publish(context.Background(), New(TypeCouponActivated, "u1", time.Now(), nil))
	assert.Error(t, err)

	p.PublishAsync(New(TypeCouponActivated, "u1", time.Now(), nil))
	require.NoError(t, p.Close())

	assert.Equal(t, uint64(2), rec.Snapshot().EventsDropped)
}

func TestPublisher_NilSink(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, testLogger(), nil)
	assert.NoError(t, p.Publish(context.Background(), New(TypeUserRegistered, "u1", time.Now(), nil)))
	assert.NoError(t, p.Close())
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	e := New(TypeCouponActivated, "user-42", time.Now(), map[string]any{"code": "ABCD1234"})
	record, err := newRecord("colloil.ledger", e)
	require.NoError(t, err)

	assert.Equal(t, "colloil.ledger", record.Topic)
	assert.Equal(t, []byte("user-42"), record.Key)
	require.Len(t, record.Headers, 1)
	assert.Equal(t, TypeCouponActivated, string(record.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "ABCD1234", decoded.Data["code"])
}

func TestPublisher_NilReceiver(t *testing.T) {
	t.Parallel()

	var p *Publisher
	p.PublishAsync(New(TypeUserRegistered, "u1", time.Now(), nil))
	assert.NoError(t, p.Close())
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakySink) Send(context.Context, Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("temporarily unavailable")
	}
	return nil
}

func (s *flakySink) Close() error { return nil }

func TestPublisher_AsyncRetriesUntilDelivered(t *testing.T) {
	t.Parallel()

	sink := &flakySink{failures: 2}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)
	p.delays = []time.Duration{time.Millisecond}

	p.PublishAsync(New(TypeCourierRequested, "u1", time.Now(), nil))
	require.Eventually(t, func() bool {
		return rec.Snapshot().EventsPublished == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())

	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, uint64(0), rec.Snapshot().EventsDropped)
}

func TestPublisher_AsyncGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	sink := &flakySink{failures: 100}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)
	p.delays = []time.Duration{time.Millisecond}

	p.PublishAsync(New(TypeCourierRequested, "u1", time.Now(), nil))
	require.Eventually(t, func() bool {
		return rec.Snapshot().EventsDropped == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())

	assert.Equal(t, DefaultMaxAttempts, sink.calls)
}

func TestPublisher_AsyncAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)
	require.NoError(t, p.Close())

	p.PublishAsync(New(TypeUserRegistered, "u1", time.Now(), nil))

	assert.Empty(t, sink.events)
	assert.Equal(t, uint64(1), rec.Snapshot().EventsDropped)
	assert.NoError(t, p.Close(), "second Close")
}

func TestPublisher_ConcurrentPublishAndClose(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	rec := metrics.NewInMemory()
	p := NewPublisher(sink, testLogger(), rec)

	const publishers = 8
	const perPublisher = 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				p.PublishAsync(New(TypeCourierRequested, "u1", time.Now(), nil))
			}
		}()
	}
	require.NoError(t, p.Close())
	wg.Wait()

	snap := rec.Snapshot()
	assert.Equal(t, uint64(publishers*perPublisher), snap.EventsPublished+snap.EventsDropped)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, int(snap.EventsPublished), len(sink.events))
}

func TestNextRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 80 * time.Millisecond, 120 * time.Millisecond},
		{0, 80 * time.Millisecond, 120 * time.Millisecond},
		{1, 400 * time.Millisecond, 600 * time.Millisecond},
		{2, 1600 * time.Millisecond, 2400 * time.Millisecond},
		{10, 1600 * time.Millisecond, 2400 * time.Millisecond},
	}
	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			d := nextRetryDelay(defaultRetryDelays, tt.attempt)
			if d < tt.minDelay || d > tt.maxDelay {
				t.Errorf("nextRetryDelay(%d) = %v, want between %v and %v", tt.attempt, d, tt.minDelay, tt.maxDelay)
			}
		}
	}
	assert.Zero(t, nextRetryDelay(nil, 0))
}

func TestIsExhausted(t *testing.T) {
	t.Parallel()

	assert.False(t, isExhausted(1, 4))
	assert.False(t, isExhausted(3, 4))
	assert.True(t, isExhausted(4, 4))
	assert.True(t, isExhausted(5, 4))
}
