package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/auction/events"
)

const defaultBuffer = 64

// Broker fans auction events out to subscribers. Publishing is serialized,
// so a given subscriber sees events for an item in the order they were
// published. Delivery is at-most-once: a subscriber that falls behind its
// buffer loses events rather than blocking the publisher.
type Broker struct {
	mu       sync.Mutex
	items    map[uuid.UUID]map[*Subscription]bool
	firehose map[*Subscription]bool
	buffer   int
	closed   bool
}

// Subscription is a live feed of events. Read from C; Close stops delivery
// with no side effect on auction state.
type Subscription struct {
	C <-chan events.Event

	ch     chan events.Event
	broker *Broker
	itemID uuid.UUID
	all    bool
	once   sync.Once
}

// NewBroker returns a broker whose subscriber channels buffer up to buffer
// events; buffer <= 0 selects the default.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		items:    make(map[uuid.UUID]map[*Subscription]bool),
		firehose: make(map[*Subscription]bool),
		buffer:   buffer,
	}
}

// Subscribe returns a feed filtered to a single item. Late subscribers see
// only events from this point forward; there is no replay.
func (b *Broker) Subscribe(itemID uuid.UUID) *Subscription {
	sub := b.newSubscription()
	sub.itemID = itemID
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items[itemID] == nil {
		b.items[itemID] = make(map[*Subscription]bool)
	}
	b.items[itemID][sub] = true
	return sub
}

// SubscribeAll returns an unfiltered feed of every event; used by the
// gateway broadcaster and the NATS relay.
func (b *Broker) SubscribeAll() *Subscription {
	sub := b.newSubscription()
	sub.all = true
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firehose[sub] = true
	return sub
}

// Publish delivers evt to every matching subscriber without blocking.
func (b *Broker) Publish(evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.firehose {
		sub.deliver(evt)
	}
	for sub := range b.items[evt.ItemID] {
		sub.deliver(evt)
	}
}

// Close shuts down the broker and every open subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.firehose {
		sub.closeChan()
	}
	for _, subs := range b.items {
		for sub := range subs {
			sub.closeChan()
		}
	}
	b.firehose = make(map[*Subscription]bool)
	b.items = make(map[uuid.UUID]map[*Subscription]bool)
}

func (b *Broker) newSubscription() *Subscription {
	ch := make(chan events.Event, b.buffer)
	return &Subscription{C: ch, ch: ch, broker: b}
}

// Close removes the subscription from the broker and closes its channel.
func (s *Subscription) Close() {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if s.all {
		delete(b.firehose, s)
	} else if subs, ok := b.items[s.itemID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.items, s.itemID)
		}
	}
	s.closeChan()
}

// deliver and closeChan are called with the broker lock held, so a send can
// never race a close.
func (s *Subscription) deliver(evt events.Event) {
	select {
	case s.ch <- evt:
	default:
		log.Warn().
			Str("event_type", string(evt.Type)).
			Str("item_id", evt.ItemID.String()).
			Msg("subscriber buffer full, dropping event")
	}
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}
