package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/auction/fanout"
)

// FanoutConsumer drains the broker firehose and hands each event to the
// connection manager, which routes it to the sockets watching that
// item. Events that arrive while a client is disconnected are not
// replayed; reconnecting clients resync from the session snapshot.
type FanoutConsumer struct {
	connectionManager *ConnectionManager
	broker            *fanout.Broker
}

func NewFanoutConsumer(cm *ConnectionManager, broker *fanout.Broker) *FanoutConsumer {
	return &FanoutConsumer{
		connectionManager: cm,
		broker:            broker,
	}
}

// Start consumes until the context is cancelled or the broker closes.
func (fc *FanoutConsumer) Start(ctx context.Context) {
	sub := fc.broker.SubscribeAll()
	defer sub.Close()

	log.Info().Msg("gateway fanout consumer started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway fanout consumer shutting down")
			return
		case evt, ok := <-sub.C:
			if !ok {
				log.Info().Msg("event broker closed, stopping fanout consumer")
				return
			}
			fc.connectionManager.BroadcastToItem(evt.ItemID, evt)
		}
	}
}
