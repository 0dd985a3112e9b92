package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalra/gavel/go/internal/auction/events"
	"github.com/mkalra/gavel/go/internal/auction/fanout"
)

type capturePublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
	events   []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failures {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeEvent(t *testing.T, typ events.Type) events.Event {
	t.Helper()
	evt, err := events.New(typ, uuid.New(), time.Now(), nil)
	require.NoError(t, err)
	return evt
}

func TestWorkerRelaysEventsInOrder(t *testing.T) {
	broker := fanout.NewBroker(64)
	defer broker.Close()
	pub := &capturePublisher{}

	worker := NewWorker(broker, pub, DefaultConfig(), testLogger())
	require.NoError(t, worker.Start(context.Background()))
	defer worker.Stop()

	want := []events.Type{events.TypeAuctionOpened, events.TypeBidAccepted, events.TypeWinnerDeclared}
	for _, typ := range want {
		broker.Publish(makeEvent(t, typ))
	}

	require.Eventually(t, func() bool {
		return len(pub.published()) == len(want)
	}, time.Second, time.Millisecond)

	var got []events.Type
	for _, evt := range pub.published() {
		got = append(got, evt.Type)
	}
	assert.Equal(t, want, got)
}

func TestWorkerRetriesTransientPublishFailures(t *testing.T) {
	broker := fanout.NewBroker(64)
	defer broker.Close()
	pub := &capturePublisher{failures: 2}

	worker := NewWorker(broker, pub, Config{MaxRetries: 3, RetryDelay: time.Millisecond}, testLogger())
	require.NoError(t, worker.Start(context.Background()))
	defer worker.Stop()

	broker.Publish(makeEvent(t, events.TypeBidAccepted))

	require.Eventually(t, func() bool {
		return len(pub.published()) == 1
	}, time.Second, time.Millisecond)
}

func TestWorkerStartStopLifecycle(t *testing.T) {
	broker := fanout.NewBroker(64)
	defer broker.Close()
	pub := &capturePublisher{}

	worker := NewWorker(broker, pub, DefaultConfig(), testLogger())
	require.NoError(t, worker.Start(context.Background()))
	require.Error(t, worker.Start(context.Background()), "double start must fail")
	require.NoError(t, worker.Stop())
	require.Error(t, worker.Stop(), "double stop must fail")
}
