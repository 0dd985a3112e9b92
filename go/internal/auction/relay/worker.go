package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkalra/gavel/go/internal/auction/events"
	"github.com/mkalra/gavel/go/internal/auction/fanout"
)

type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Worker drains the in-process event broker and republishes each event
// through the configured publisher. A publish that still fails after
// the retries is logged and dropped; downstream consumers are not part
// of the delivery guarantee the auction floor gets.
type Worker struct {
	broker    *fanout.Broker
	publisher EventPublisher
	config    Config
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(broker *fanout.Broker, publisher EventPublisher, cfg Config, logger *slog.Logger) *Worker {
	return &Worker{
		broker:    broker,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("relay worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("relay worker started",
		slog.Int("max_retries", w.config.MaxRetries),
		slog.Duration("retry_delay", w.config.RetryDelay))

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("relay worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	w.logger.Info("relay worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	sub := w.broker.SubscribeAll()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case evt, ok := <-sub.C:
			if !ok {
				w.logger.Info("event broker closed, relay worker exiting")
				return
			}
			if err := w.publishWithRetry(ctx, evt); err != nil {
				w.logger.Error("failed to publish event",
					slog.String("event_id", evt.ID.String()),
					slog.String("event_type", string(evt.Type)),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event events.Event) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopChan:
				return fmt.Errorf("relay worker stopping: %w", lastErr)
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			w.logger.Warn("failed to publish event, retrying",
				slog.String("event_id", event.ID.String()),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
