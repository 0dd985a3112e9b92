// Package relay forwards auction events to NATS so other services
// (archival, analytics, league dashboards) can consume them without a
// socket into this process.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mkalra/gavel/go/internal/auction/events"
)

// EventPublisher abstracts the broker behind the relay worker.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// NATSPublisher publishes events to NATS, one subject per event type.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// NATSConfig holds the connection settings for the relay publisher.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

func NewNATSPublisher(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", slog.String("error", fmt.Sprint(err)))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{
		nc:            nc,
		subjectPrefix: cfg.SubjectPrefix,
		logger:        logger,
	}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event events.Event) error {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.Type)

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event",
		slog.String("subject", subject),
		slog.String("event_id", event.ID.String()),
		slog.Int("size", len(messageBytes)))
	return nil
}

// Close drains the connection before closing it.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Error("failed to drain NATS connection", slog.String("error", err.Error()))
	}
}
