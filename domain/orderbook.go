package domain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single (price, volume) pair, as read off the book.
// Volume is always > 0 for a level actually stored in the book (spec.md
// §3 invariant).
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// side is one half of the book: a price-sorted ladder with O(1)
// best-of-book, backed by a map for exact-key lookups and a parallel
// sorted price index. Insert/remove find their position by binary search
// (O(log n)); the slice shift that follows is linear in the side's length. This generalizes the
// teacher's linear-scan-then-resort []float64 ladder
// (domain/orderbook.go's updateDepth) into the ordered-map spec.md §4.1
// asks for, while keeping the same "map of price to volume" shape.
type side struct {
	ascending bool // true for asks (lowest first), false for bids (highest first)
	levels    map[string]decimal.Decimal
	order     []decimal.Decimal // kept sorted per `ascending`
}

func newSide(ascending bool) *side {
	return &side{
		ascending: ascending,
		levels:    make(map[string]decimal.Decimal),
		order:     make([]decimal.Decimal, 0),
	}
}

func (s *side) less(a, b decimal.Decimal) bool {
	if s.ascending {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}

// apply mutates the side for a single (price, volume) update and reports
// the delta as spec.md §4.1 defines it.
func (s *side) apply(price, volume decimal.Decimal) int {
	key := price.String()
	_, exists := s.levels[key]

	if volume.IsZero() {
		if !exists {
			return 0
		}
		delete(s.levels, key)
		s.removeFromOrder(price)
		return -1
	}

	s.levels[key] = volume
	if exists {
		return 0
	}

	s.insertIntoOrder(price)
	return 1
}

// insertionPoint finds the first index whose element does not precede
// price in this side's ordering — the position price belongs at,
// whether inserting a new level or locating an existing one for removal.
func (s *side) insertionPoint(price decimal.Decimal) int {
	return sort.Search(len(s.order), func(i int) bool {
		return !s.less(s.order[i], price)
	})
}

func (s *side) insertIntoOrder(price decimal.Decimal) {
	i := s.insertionPoint(price)
	s.order = append(s.order, decimal.Decimal{})
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = price
}

func (s *side) removeFromOrder(price decimal.Decimal) {
	i := s.insertionPoint(price)
	if i < len(s.order) && s.order[i].Equal(price) {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

func (s *side) best() (decimal.Decimal, bool) {
	if len(s.order) == 0 {
		return decimal.Decimal{}, false
	}
	return s.order[0], true
}

func (s *side) top(n int) []PriceLevel {
	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]PriceLevel, n)
	for i := 0; i < n; i++ {
		price := s.order[i]
		out[i] = PriceLevel{Price: price, Volume: s.levels[price.String()]}
	}
	return out
}

func (s *side) reset() {
	s.levels = make(map[string]decimal.Decimal)
	s.order = s.order[:0]
}

// OrderBook is a price-sorted bid/ask ladder for a single symbol, gated
// by a monotonic generation number (spec.md §4.1). All mutation and
// query methods are safe for concurrent use; each holds the book's own
// mutex, mirroring the teacher's domain.OrderBook.updateMx.
type OrderBook struct {
	Symbol *MarketSymbol

	mu         sync.Mutex
	bids       *side
	asks       *side
	generation int64
}

// NewOrderBook constructs an empty book at generation 0. Callers seed it
// via Commit before relying on it for queries.
func NewOrderBook(symbol *MarketSymbol) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newSide(false),
		asks:   newSide(true),
	}
}

// Bid applies a single bid-side (price, volume, generation) update.
// Returns the delta and whether the update was accepted. A rejected
// update (generation < current) returns delta 0, accepted=false and
// leaves the book untouched, per spec.md §4.1.
func (ob *OrderBook) Bid(price, volume string, generation int64) (delta int, accepted bool, err error) {
	return ob.applySide(ob.bidsSideLocked, price, volume, generation)
}

// Ask applies a single ask-side update. See Bid.
func (ob *OrderBook) Ask(price, volume string, generation int64) (delta int, accepted bool, err error) {
	return ob.applySide(ob.asksSideLocked, price, volume, generation)
}

func (ob *OrderBook) bidsSideLocked() *side { return ob.bids }
func (ob *OrderBook) asksSideLocked() *side { return ob.asks }

func (ob *OrderBook) applySide(pick func() *side, priceStr, volumeStr string, generation int64) (int, bool, error) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return 0, false, fmt.Errorf("orderbook: invalid price %q: %w", priceStr, err)
	}
	volume, err := decimal.NewFromString(volumeStr)
	if err != nil {
		return 0, false, fmt.Errorf("orderbook: invalid volume %q: %w", volumeStr, err)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if generation < ob.generation {
		return 0, false, nil
	}

	delta := pick().apply(price, volume)
	if generation > ob.generation {
		ob.generation = generation
	}
	return delta, true, nil
}

// Commit atomically replaces both sides of the book with seed and sets
// generation to g (spec.md §4.1 "Snapshot commit"). It is used both for
// the initial REST snapshot and for a resnapshot after a sequence-gap
// forces a resync (spec.md §4.4).
func (ob *OrderBook) Commit(generation int64, bids, asks [][2]string) error {
	newBids := newSide(false)
	newAsks := newSide(true)

	for _, lvl := range bids {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return fmt.Errorf("orderbook: commit: invalid bid price %q: %w", lvl[0], err)
		}
		volume, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return fmt.Errorf("orderbook: commit: invalid bid volume %q: %w", lvl[1], err)
		}
		if !volume.IsZero() {
			newBids.apply(price, volume)
		}
	}

	for _, lvl := range asks {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return fmt.Errorf("orderbook: commit: invalid ask price %q: %w", lvl[0], err)
		}
		volume, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return fmt.Errorf("orderbook: commit: invalid ask volume %q: %w", lvl[1], err)
		}
		if !volume.IsZero() {
			newAsks.apply(price, volume)
		}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids = newBids
	ob.asks = newAsks
	ob.generation = generation
	return nil
}

// Generation returns the last applied generation.
func (ob *OrderBook) Generation() int64 {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.generation
}

// BestBid returns the highest bid, or ok=false when the bid side is
// empty (spec.md §4.1's "no level" sentinel).
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.bids.best()
}

// BestAsk returns the lowest ask, or ok=false when the ask side is
// empty.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.asks.best()
}

// TopBids returns up to n bids, highest-first, as a point-in-time copy.
// n <= 0 returns the whole side.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.bids.top(n)
}

// TopAsks returns up to n asks, lowest-first, as a point-in-time copy.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.asks.top(n)
}
