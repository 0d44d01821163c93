package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustSymbol(t *testing.T) *MarketSymbol {
	t.Helper()
	symbol, err := NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}
	return symbol
}

// TestOrderBook_SnapshotThenDiff is spec.md §8 scenario 1, literally.
func TestOrderBook_SnapshotThenDiff(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))

	err := ob.Commit(100, [][2]string{{"10", "1"}}, [][2]string{{"11", "2"}})
	assert.NoError(t, err)

	_, accepted, err := ob.Bid("10", "0", 101)
	assert.NoError(t, err)
	assert.True(t, accepted)

	_, accepted, err = ob.Ask("12", "3", 101)
	assert.NoError(t, err)
	assert.True(t, accepted)

	assert.Equal(t, int64(101), ob.Generation())
	assert.Empty(t, ob.TopBids(0))

	asks := ob.TopAsks(0)
	assert.Len(t, asks, 2)
	assert.Equal(t, "11", asks[0].Price.String())
	assert.Equal(t, "12", asks[1].Price.String())

	_, ok := ob.BestBid()
	assert.False(t, ok, "empty bid side must report absent best bid")

	bestAsk, ok := ob.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, "11", bestAsk.String())
}

// TestOrderBook_StaleDiffDropped is spec.md §8 scenario 2.
func TestOrderBook_StaleDiffDropped(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(200, nil, nil))

	delta, accepted, err := ob.Ask("50", "1", 199)
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 0, delta)
	assert.Equal(t, int64(200), ob.Generation())
	assert.Empty(t, ob.TopAsks(0))
}

func TestOrderBook_BidDeltas(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(1, nil, nil))

	delta, accepted, err := ob.Bid("100", "1", 2)
	assert.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 1, delta, "new level is +1")

	delta, accepted, err = ob.Bid("100", "2", 3)
	assert.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 0, delta, "in-place update is 0")

	delta, accepted, err = ob.Bid("100", "0", 4)
	assert.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, -1, delta, "zero volume removes the level")

	_, ok := ob.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_GenerationNeverDecreases(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(10, nil, nil))

	_, _, err := ob.Bid("1", "1", 11)
	assert.NoError(t, err)
	assert.Equal(t, int64(11), ob.Generation())

	_, accepted, err := ob.Bid("2", "1", 5)
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, int64(11), ob.Generation(), "generation must not go backwards")
}

func TestOrderBook_TopNIsSortedAndBounded(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(1, [][2]string{
		{"10", "1"}, {"9", "1"}, {"11", "1"}, {"8", "1"},
	}, nil))

	top := ob.TopBids(2)
	assert.Len(t, top, 2)
	assert.Equal(t, "11", top[0].Price.String())
	assert.Equal(t, "10", top[1].Price.String())
}

func TestOrderBook_CommitReplacesPriorState(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(1, [][2]string{{"10", "1"}}, [][2]string{{"11", "1"}}))
	assert.NoError(t, ob.Commit(50, [][2]string{{"20", "2"}}, nil))

	assert.Equal(t, int64(50), ob.Generation())
	bids := ob.TopBids(0)
	assert.Len(t, bids, 1)
	assert.Equal(t, "20", bids[0].Price.String())
	assert.Empty(t, ob.TopAsks(0), "commit must fully replace the ask side too")
}

func TestOrderBook_InvalidPriceRejected(t *testing.T) {
	ob := NewOrderBook(mustSymbol(t))
	assert.NoError(t, ob.Commit(1, nil, nil))

	_, _, err := ob.Bid("not-a-number", "1", 2)
	assert.Error(t, err)
}
