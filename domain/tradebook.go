package domain

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// TradeSide is one of {buy, sell} (spec.md §3).
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeEntry is a single tape entry. AskID/BidID are optional maker/taker
// order ids, only populated on the own-trades tape (spec.md §3).
type TradeEntry struct {
	TID    int64
	Side   TradeSide
	TsMs   int64
	Price  decimal.Decimal
	Amount decimal.Decimal
	AskID  int64
	BidID  int64
}

// defaultTapeCapacity bounds each tape so a long-lived process does not
// grow it without bound. spec.md §2 already calls the market tape
// "bounded"; this is the concrete bound, a supplement beyond the
// literal append-only wording of spec.md §3.
const defaultTapeCapacity = 5000

// TradeBook holds the market tape and the own-trades tape for a single
// symbol (spec.md §4.2). Both tapes are append-only deques, reusing the
// teacher's gammazero/deque dependency (previously only used for the
// depth-update queue) since it gives O(1) push-back and O(1)
// pop-from-front eviction once the cap is hit.
type TradeBook struct {
	mu sync.Mutex

	market   deque.Deque[TradeEntry]
	ownTrade deque.Deque[TradeEntry]
	capacity int
}

// NewTradeBook constructs an empty TradeBook with the default tape
// capacity.
func NewTradeBook() *TradeBook {
	return &TradeBook{capacity: defaultTapeCapacity}
}

// Add appends a market-tape entry. Duplicate trade ids are permitted;
// the upstream may repost (spec.md §4.2).
func (tb *TradeBook) Add(entry TradeEntry) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	pushBounded(&tb.market, entry, tb.capacity)
}

// AddMyTrade appends to the parallel own-trades tape.
func (tb *TradeBook) AddMyTrade(entry TradeEntry) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	pushBounded(&tb.ownTrade, entry, tb.capacity)
}

// Fetch returns up to size market-tape entries, newest first. size <= 0
// returns the whole tape.
func (tb *TradeBook) Fetch(size int) []TradeEntry {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return fetchNewestFirst(&tb.market, size)
}

// FetchMyTrades returns up to size own-trades entries, newest first.
// size <= 0 returns the whole tape.
func (tb *TradeBook) FetchMyTrades(size int) []TradeEntry {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return fetchNewestFirst(&tb.ownTrade, size)
}

func pushBounded(d *deque.Deque[TradeEntry], entry TradeEntry, capacity int) {
	d.PushBack(entry)
	for d.Len() > capacity {
		d.PopFront()
	}
}

func fetchNewestFirst(d *deque.Deque[TradeEntry], size int) []TradeEntry {
	n := d.Len()
	if size > 0 && size < n {
		n = size
	}

	out := make([]TradeEntry, n)
	for i := 0; i < n; i++ {
		// index 0 is the oldest entry (front); newest is Len()-1.
		out[i] = d.At(d.Len() - 1 - i)
	}
	return out
}
