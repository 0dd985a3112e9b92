package fanout

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalra/gavel/go/internal/auction/events"
)

func makeEvent(t *testing.T, typ events.Type, itemID uuid.UUID) events.Event {
	t.Helper()
	evt, err := events.New(typ, itemID, time.Now(), struct{}{})
	require.NoError(t, err)
	return evt
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()
	itemID := uuid.New()

	sub := b.Subscribe(itemID)
	defer sub.Close()

	published := []events.Type{
		events.TypeAuctionOpened,
		events.TypeBidAccepted,
		events.TypeTimerReset,
		events.TypeWinnerDeclared,
	}
	for _, typ := range published {
		b.Publish(makeEvent(t, typ, itemID))
	}

	for _, want := range published {
		select {
		case got := <-sub.C:
			assert.Equal(t, want, got.Type)
			assert.Equal(t, itemID, got.ItemID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSubscriptionFiltersByItem(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()
	mine, other := uuid.New(), uuid.New()

	sub := b.Subscribe(mine)
	defer sub.Close()

	b.Publish(makeEvent(t, events.TypeBidAccepted, other))
	b.Publish(makeEvent(t, events.TypeBidAccepted, mine))

	got := <-sub.C
	assert.Equal(t, mine, got.ItemID)
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event for item %s", evt.ItemID)
	default:
	}
}

func TestFirehoseSeesEveryItem(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	sub := b.SubscribeAll()
	defer sub.Close()

	a, c := uuid.New(), uuid.New()
	b.Publish(makeEvent(t, events.TypeAuctionOpened, a))
	b.Publish(makeEvent(t, events.TypeAuctionOpened, c))

	first, second := <-sub.C, <-sub.C
	assert.Equal(t, a, first.ItemID)
	assert.Equal(t, c, second.ItemID)
}

func TestCloseStopsDelivery(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()
	itemID := uuid.New()

	sub := b.Subscribe(itemID)
	sub.Close()

	// must not panic on a closed subscription
	b.Publish(makeEvent(t, events.TypeBidAccepted, itemID))

	_, open := <-sub.C
	assert.False(t, open)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(1)
	defer b.Close()
	itemID := uuid.New()

	sub := b.Subscribe(itemID)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(makeEvent(t, events.TypeBidAccepted, itemID))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// exactly the buffered event survives
	<-sub.C
	select {
	case <-sub.C:
		t.Fatal("expected remaining events to be dropped")
	default:
	}
}
