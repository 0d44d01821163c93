package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-binance-marketdata/eventbus"
)

// OrderRequest is the caller-supplied description of an order to submit
// (spec.md §3, "Order (Trader)").
type OrderRequest struct {
	Symbol   *MarketSymbol
	Type     string // "limit", "market", ...
	Side     TradeSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Trade is the per-order handle returned immediately by Trader.Order. It
// is a small state object publishing lifecycle events — submit, error —
// to the subscribers registered when each event is emitted; they may be
// registered before the order is actually sent (spec.md §4.5, §6). An
// event emitted before a subscriber registered is not replayed to it. Trader
// owns each Trade exclusively until the caller drops its reference
// (spec.md §3, "Ownership").
type Trade struct {
	Request       *OrderRequest
	CorrelationID uuid.UUID

	bus     *eventbus.Bus
	orderID int64
}

// NewTrade constructs a Trade handle for req, stamped with a fresh
// correlation id so log lines and subscriber bookkeeping can tie a
// deferred submission back to the call that created it. It carries no
// network effect by itself; Trader decides when submission actually
// happens.
func NewTrade(req *OrderRequest) *Trade {
	return &Trade{
		Request:       req,
		CorrelationID: uuid.New(),
		bus:           eventbus.New(),
	}
}

// OnSubmit registers a handler invoked exactly once, with the numeric
// order id, when the POST succeeds (spec.md §6, "submit(id)").
func (t *Trade) OnSubmit(handler func(orderID int64)) {
	t.bus.Once(eventSubmit, func(args ...any) {
		handler(args[0].(int64))
	})
}

// OnError registers a handler invoked with the failed request or
// transport error whenever submission fails (spec.md §6, "error(request)").
func (t *Trade) OnError(handler func(reason any)) {
	t.bus.On(eventError, func(args ...any) {
		handler(args[0])
	})
}

// OrderID returns the order id recorded after a successful submit, and
// whether one has been recorded yet.
func (t *Trade) OrderID() (int64, bool) {
	return t.orderID, t.orderID != 0
}

const (
	eventSubmit = "submit"
	eventError  = "error"
)

// EmitSubmit is called by Trader once the upstream accepts the order.
func (t *Trade) EmitSubmit(orderID int64) {
	t.orderID = orderID
	t.bus.Emit(eventSubmit, orderID)
}

// EmitError is called by Trader on transport failure or an HTTP status
// >= 300, carrying whatever failed-request value the caller wants
// attached (spec.md §7.3).
func (t *Trade) EmitError(reason any) {
	t.bus.Emit(eventError, reason)
}
