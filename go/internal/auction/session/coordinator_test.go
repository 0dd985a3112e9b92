package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalra/gavel/go/internal/auction/events"
	"github.com/mkalra/gavel/go/internal/auction/fanout"
	"github.com/mkalra/gavel/go/internal/auction/ledger"
	"github.com/mkalra/gavel/go/internal/auction/settlement"
	"github.com/mkalra/gavel/go/internal/models"
	"github.com/mkalra/gavel/go/internal/storage/memory"
)

type fixture struct {
	store  *memory.Store
	broker *fanout.Broker
	clk    *clockwork.FakeClock
	coord  *Coordinator

	player models.Player
	buyerA models.Buyer
	buyerB models.Buyer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	broker := fanout.NewBroker(64)
	t.Cleanup(broker.Close)
	clk := clockwork.NewFakeClock()

	f := &fixture{
		store:  store,
		broker: broker,
		clk:    clk,
		player: models.Player{ID: uuid.New(), Name: "V Kumar", BasePrice: 1000},
		buyerA: models.Buyer{ID: uuid.New(), Name: "Strikers", Balance: 10000},
		buyerB: models.Buyer{ID: uuid.New(), Name: "Titans", Balance: 10000},
	}
	ctx := context.Background()
	require.NoError(t, store.CreatePlayer(ctx, f.player))
	require.NoError(t, store.UpsertBuyer(ctx, f.buyerA))
	require.NoError(t, store.UpsertBuyer(ctx, f.buyerB))

	engine := settlement.NewEngine(store, settlement.Config{MaxAttempts: 1}, clockwork.NewRealClock())
	f.coord = New(store, store, engine, broker, clk, DefaultConfig())
	return f
}

func (f *fixture) waitForState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.coord.Snapshot().State == want
	}, time.Second, time.Millisecond, "expected session state %s", want)
}

func drainTypes(sub *fanout.Subscription) []events.Type {
	var out []events.Type
	for {
		select {
		case evt := <-sub.C:
			out = append(out, evt.Type)
		default:
			return out
		}
	}
}

func TestOpenRejectsInvalidWindowAndBusySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Open(ctx, f.player.ID, 0)
	require.Error(t, err)

	_, err = f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)

	_, err = f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.ErrorIs(t, err, ErrSessionBusy)
}

func TestOpenRejectsSoldPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.ApplySale(ctx, settlement.Sale{
		PlayerID: f.player.ID, BuyerID: f.buyerA.ID, Amount: 1200,
	}))

	_, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.ErrorIs(t, err, ErrItemUnavailable)
}

func TestBidRequiresOpenAuction(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.PlaceBid(context.Background(), f.buyerA.ID, 1500)
	require.ErrorIs(t, err, ErrNoActiveAuction)
}

func TestWinnerPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.broker.Subscribe(f.player.ID)
	defer sub.Close()

	snap, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, snap.State)
	assert.True(t, snap.Player.BiddingOpen)

	bid1, err := f.coord.PlaceBid(ctx, f.buyerA.ID, 1200)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bid1.Seq)

	_, err = f.coord.PlaceBid(ctx, f.buyerB.ID, 1100)
	require.ErrorIs(t, err, ledger.ErrBidTooLow)

	bid2, err := f.coord.PlaceBid(ctx, f.buyerB.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bid2.Seq)

	f.clk.Advance(15 * time.Second)
	f.waitForState(t, StateSettled)

	player, err := f.store.GetPlayer(ctx, f.player.ID)
	require.NoError(t, err)
	assert.True(t, player.Sold)
	assert.False(t, player.BiddingOpen)
	require.NotNil(t, player.TeamID)
	assert.Equal(t, f.buyerB.ID, *player.TeamID)

	winner, err := f.store.GetBuyer(ctx, f.buyerB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), winner.Balance)
	assert.True(t, winner.HasPlayer(f.player.ID))

	loser, err := f.store.GetBuyer(ctx, f.buyerA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), loser.Balance)

	types := drainTypes(sub)
	assert.Equal(t, []events.Type{
		events.TypeAuctionOpened,
		events.TypeBidAccepted,
		events.TypeTimerReset,
		events.TypeBidAccepted,
		events.TypeTimerReset,
		events.TypeWinnerDeclared,
	}, types)
}

func TestNoBidExpiryReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.broker.Subscribe(f.player.ID)
	defer sub.Close()

	_, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)

	f.clk.Advance(15 * time.Second)
	f.waitForState(t, StateIdle)

	player, err := f.store.GetPlayer(ctx, f.player.ID)
	require.NoError(t, err)
	assert.False(t, player.Sold)
	assert.False(t, player.BiddingOpen)

	require.Eventually(t, func() bool {
		for _, typ := range drainTypes(sub) {
			if typ == events.TypeAuctionPassed {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	// the session is reopenable immediately
	_, err = f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)
}

func TestBidInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)

	_, err = f.coord.PlaceBid(ctx, f.buyerA.ID, 10001)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, f.coord.Snapshot().Bids)
}

func TestAcceptedBidResetsCountdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Open(ctx, f.player.ID, 10*time.Second)
	require.NoError(t, err)

	f.clk.Advance(8 * time.Second)
	_, err = f.coord.PlaceBid(ctx, f.buyerA.ID, 1200)
	require.NoError(t, err)

	// well past the original deadline, the session stays open
	f.clk.Advance(8 * time.Second)
	assert.Equal(t, StateOpen, f.coord.Snapshot().State)

	f.clk.Advance(2 * time.Second)
	f.waitForState(t, StateSettled)
}

func TestConcurrentEqualBidsAcceptExactlyOne(t *testing.T) {
	store := memory.NewStore()
	broker := fanout.NewBroker(64)
	defer broker.Close()
	player := models.Player{ID: uuid.New(), Name: "V Kumar", BasePrice: 1000}
	buyerA := models.Buyer{ID: uuid.New(), Name: "Strikers", Balance: 10000}
	buyerB := models.Buyer{ID: uuid.New(), Name: "Titans", Balance: 10000}
	ctx := context.Background()
	require.NoError(t, store.CreatePlayer(ctx, player))
	require.NoError(t, store.UpsertBuyer(ctx, buyerA))
	require.NoError(t, store.UpsertBuyer(ctx, buyerB))

	engine := settlement.NewEngine(store, settlement.DefaultConfig(), clockwork.NewRealClock())
	coord := New(store, store, engine, broker, clockwork.NewRealClock(), DefaultConfig())

	_, err := coord.Open(ctx, player.ID, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyerID := range []uuid.UUID{buyerA.ID, buyerB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = coord.PlaceBid(ctx, id, 1500)
		}(i, buyerID)
	}
	wg.Wait()

	accepted, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ledger.ErrBidTooLow):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.Len(t, coord.Snapshot().Bids, 1)
}

func TestSettlementInsufficientBalanceCancelsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.broker.Subscribe(f.player.ID)
	defer sub.Close()

	_, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)

	_, err = f.coord.PlaceBid(ctx, f.buyerA.ID, 9500)
	require.NoError(t, err)

	// drain the winner's balance through a concurrent sale before expiry
	other := models.Player{ID: uuid.New(), Name: "R Sharma", BasePrice: 500}
	require.NoError(t, f.store.CreatePlayer(ctx, other))
	require.NoError(t, f.store.ApplySale(ctx, settlement.Sale{
		PlayerID: other.ID, BuyerID: f.buyerA.ID, Amount: 2000,
	}))

	f.clk.Advance(15 * time.Second)
	f.waitForState(t, StateIdle)

	player, err := f.store.GetPlayer(ctx, f.player.ID)
	require.NoError(t, err)
	assert.False(t, player.Sold, "a cancelled sale must leave the player unsold")
	assert.False(t, player.BiddingOpen)

	require.Eventually(t, func() bool {
		for _, typ := range drainTypes(sub) {
			if typ == events.TypeAuctionCancelled {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

// flakySettler fails a fixed number of times before delegating.
type flakySettler struct {
	mu        sync.Mutex
	failures  int
	delegate  Settler
	attempted int
}

func (s *flakySettler) Settle(ctx context.Context, winning models.Bid) error {
	s.mu.Lock()
	s.attempted++
	fail := s.attempted <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("store unreachable")
	}
	return s.delegate.Settle(ctx, winning)
}

func TestSettlementFailureHoldsSessionUntilRetry(t *testing.T) {
	store := memory.NewStore()
	broker := fanout.NewBroker(64)
	defer broker.Close()
	clk := clockwork.NewFakeClock()
	player := models.Player{ID: uuid.New(), Name: "V Kumar", BasePrice: 1000}
	buyer := models.Buyer{ID: uuid.New(), Name: "Strikers", Balance: 10000}
	ctx := context.Background()
	require.NoError(t, store.CreatePlayer(ctx, player))
	require.NoError(t, store.UpsertBuyer(ctx, buyer))

	engine := settlement.NewEngine(store, settlement.Config{MaxAttempts: 1}, clockwork.NewRealClock())
	settler := &flakySettler{failures: 1, delegate: engine}
	coord := New(store, store, settler, broker, clk, DefaultConfig())

	_, err := coord.Open(ctx, player.ID, 15*time.Second)
	require.NoError(t, err)
	_, err = coord.PlaceBid(ctx, buyer.ID, 1500)
	require.NoError(t, err)

	clk.Advance(15 * time.Second)
	require.Eventually(t, func() bool {
		snap := coord.Snapshot()
		return snap.State == StateClosing && snap.SettlementErr != ""
	}, time.Second, time.Millisecond)

	// held sessions reject both bids and new items
	_, err = coord.PlaceBid(ctx, buyer.ID, 2000)
	require.ErrorIs(t, err, ErrAuctionClosed)
	_, err = coord.Open(ctx, player.ID, 15*time.Second)
	require.ErrorIs(t, err, ErrSessionBusy)

	require.NoError(t, coord.RetrySettlement(ctx))
	assert.Equal(t, StateSettled, coord.Snapshot().State)

	got, err := store.GetPlayer(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, got.Sold)
}

func TestRetrySettlementWithoutFailure(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.coord.RetrySettlement(context.Background()), ErrNothingToSettle)
}

func TestWithdrawReturnsSessionToIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.broker.Subscribe(f.player.ID)
	defer sub.Close()

	require.ErrorIs(t, f.coord.Withdraw(ctx), ErrNoActiveAuction)

	_, err := f.coord.Open(ctx, f.player.ID, 15*time.Second)
	require.NoError(t, err)
	_, err = f.coord.PlaceBid(ctx, f.buyerA.ID, 1200)
	require.NoError(t, err)

	require.NoError(t, f.coord.Withdraw(ctx))
	assert.Equal(t, StateIdle, f.coord.Snapshot().State)

	player, err := f.store.GetPlayer(ctx, f.player.ID)
	require.NoError(t, err)
	assert.False(t, player.BiddingOpen)
	assert.False(t, player.Sold)

	// the cancelled countdown must not fire later
	f.clk.Advance(time.Minute)
	assert.Equal(t, StateIdle, f.coord.Snapshot().State)

	var sawCancel bool
	for _, typ := range drainTypes(sub) {
		if typ == events.TypeAuctionCancelled {
			sawCancel = true
		}
	}
	assert.True(t, sawCancel)
}
