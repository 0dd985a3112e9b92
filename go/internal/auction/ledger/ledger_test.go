package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendValidation(t *testing.T) {
	playerID := uuid.New()
	buyerID := uuid.New()

	cases := []struct {
		name      string
		basePrice int64
		prior     []int64
		amount    int64
		wantErr   error
	}{
		{
			name:      "first bid above base price accepted",
			basePrice: 1000,
			amount:    1200,
		},
		{
			name:      "first bid equal to base price rejected",
			basePrice: 1000,
			amount:    1000,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "first bid below base price rejected",
			basePrice: 1000,
			amount:    900,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "bid below current highest rejected",
			basePrice: 1000,
			prior:     []int64{1200},
			amount:    1100,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "bid equal to current highest rejected",
			basePrice: 1000,
			prior:     []int64{1200},
			amount:    1200,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "bid above current highest accepted",
			basePrice: 1000,
			prior:     []int64{1200},
			amount:    1500,
		},
		{
			name:      "zero amount rejected",
			basePrice: 1000,
			amount:    0,
			wantErr:   ErrNonPositiveAmount,
		},
		{
			name:      "negative amount rejected",
			basePrice: 1000,
			amount:    -5,
			wantErr:   ErrNonPositiveAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(playerID, tc.basePrice)
			for _, amount := range tc.prior {
				_, err := l.Append(buyerID, amount, time.Now())
				require.NoError(t, err)
			}

			bid, err := l.Append(buyerID, tc.amount, time.Now())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, len(tc.prior), l.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.amount, bid.Amount)
			assert.Equal(t, playerID, bid.PlayerID)
			assert.Equal(t, uint64(len(tc.prior)+1), bid.Seq)
		})
	}
}

func TestSequenceNumbersAreStrictlyIncreasing(t *testing.T) {
	l := New(uuid.New(), 1000)
	buyer := uuid.New()

	amounts := []int64{1200, 1500, 2000, 2001}
	for i, amount := range amounts {
		bid, err := l.Append(buyer, amount, time.Now())
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), bid.Seq)
	}

	bids := l.Bids()
	require.Len(t, bids, len(amounts))
	for i := 1; i < len(bids); i++ {
		assert.Greater(t, bids[i].Seq, bids[i-1].Seq)
		assert.Greater(t, bids[i].Amount, bids[i-1].Amount)
	}
}

func TestHighestTracksLatestAcceptedBid(t *testing.T) {
	l := New(uuid.New(), 1000)

	_, ok := l.Highest()
	assert.False(t, ok)

	first := uuid.New()
	second := uuid.New()
	_, err := l.Append(first, 1200, time.Now())
	require.NoError(t, err)
	_, err = l.Append(second, 1500, time.Now())
	require.NoError(t, err)

	// a low bid after a higher one changes nothing
	_, err = l.Append(first, 1100, time.Now())
	require.ErrorIs(t, err, ErrBidTooLow)

	winning, ok := l.Highest()
	require.True(t, ok)
	assert.Equal(t, second, winning.BuyerID)
	assert.Equal(t, int64(1500), winning.Amount)
	assert.Equal(t, uint64(2), winning.Seq)
}

func TestBidsReturnsCopy(t *testing.T) {
	l := New(uuid.New(), 100)
	_, err := l.Append(uuid.New(), 200, time.Now())
	require.NoError(t, err)

	bids := l.Bids()
	bids[0].Amount = 999

	fresh := l.Bids()
	assert.Equal(t, int64(200), fresh[0].Amount)
}
