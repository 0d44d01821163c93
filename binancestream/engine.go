// Package binancestream implements the multiplexed stream engine
// (spec.md §2 component E, §4.4): it opens one combined WebSocket per
// process, loads REST snapshots per symbol, and fans out decoded frames
// into the three per-symbol state containers (domain.OrderBook,
// domain.TradeBook, domain.KLineSeries), publishing normalized events on
// an eventbus.Bus as it goes. Grounded on the teacher's
// provider/binance/{stream-api,orderbook-maintainer,sync-api}.go, folded
// into a single combined-stream engine instead of the teacher's
// per-symbol/per-topic subscription model, since Binance's combined
// stream multiplexes everything over one connection.
package binancestream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-binance-marketdata/config"
	"github.com/spooky-finn/go-binance-marketdata/domain"
	"github.com/spooky-finn/go-binance-marketdata/eventbus"
	"github.com/spooky-finn/go-binance-marketdata/transport"
)

var logger = log.New(os.Stdout, "[binancestream] ", log.LstdFlags)

// Event names published on the bus (spec.md §6).
const (
	EventOrderBookOpen  = "orderbook_open"
	EventTradeBookOpen  = "tradebook_open"
	EventKlineOpen      = "kline_open"
	EventKlineSymbolRdy = "kline_symbol_ready" // supplement, see SPEC_FULL.md §4.4
	EventTicker         = "ticker_message"
	EventTrade          = "trade_message"
	EventKline          = "kline_message"
	EventError          = "error"
)

// TickerMessage, TradeMessage and KlineMessage are the {symbol, data}
// shaped payloads spec.md §6 describes for their respective events.
type TickerMessage struct {
	Symbol string
	Data   TickerUpdate
}

type TradeMessage struct {
	Symbol string
	Data   TradeUpdate
}

type KlineMessage struct {
	Symbol string
	Period int
	Data   domain.KLinePoint
}

// StreamEngine is spec.md §2 component E. It owns, for its lifetime, the
// triple of per-symbol stores (order book, trade book, k-line series)
// for every market passed to Start (spec.md §3, "Ownership").
type StreamEngine struct {
	client    *transport.Client
	bus       *eventbus.Bus
	cfg       *config.Config
	validator domain.DepthUpdateValidator

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	markets []*domain.MarketSymbol

	books  map[string]*domain.OrderBook
	trades map[string]*domain.TradeBook
	klines map[string]*domain.KLineSeries

	// firstDepthDiff tracks, per symbol, whether the next depth diff
	// examined is the first one since the last Commit (spec.md §4.4).
	firstDepthDiff map[string]bool

	depthPending int
	tradePending int
	klinePending int // total across all symbols x periods
	klinePendingBySymbol map[string]int
}

// New constructs a StreamEngine. client and bus are shared collaborators
// (spec.md §5, "Shared resources").
func New(client *transport.Client, bus *eventbus.Bus, cfg *config.Config) *StreamEngine {
	return &StreamEngine{
		client:               client,
		bus:                  bus,
		cfg:                  cfg,
		validator:            domain.BinanceDepthUpdateValidator{},
		books:                make(map[string]*domain.OrderBook),
		trades:               make(map[string]*domain.TradeBook),
		klines:               make(map[string]*domain.KLineSeries),
		firstDepthDiff:       make(map[string]bool),
		klinePendingBySymbol: make(map[string]int),
	}
}

// Start constructs per-symbol stores, opens the combined WebSocket, and
// kicks off snapshot loading for every symbol (spec.md §4.4). It returns
// synchronously once the combined stream is dialed; readiness is
// signaled asynchronously via the bus.
func (e *StreamEngine) Start(ctx context.Context, markets []*domain.MarketSymbol, periods []int) error {
	if len(markets) == 0 {
		return domain.ErrEmptyMarkets
	}
	for _, p := range periods {
		if _, ok := config.RecognizedPeriods[p]; !ok {
			return fmt.Errorf("binancestream: %w: %d", domain.ErrUnknownPeriod, p)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.markets = markets
	e.cancel = cancel
	e.depthPending = len(markets)
	e.tradePending = len(markets)
	e.klinePending = len(markets) * len(periods)
	for _, symbol := range markets {
		key := symbol.String()
		e.books[key] = domain.NewOrderBook(symbol)
		e.trades[key] = domain.NewTradeBook()
		e.klines[key] = domain.NewKLineSeries()
		e.klinePendingBySymbol[key] = len(periods)
	}
	e.mu.Unlock()

	streamPath, err := buildCombinedStreamPath(markets, periods)
	if err != nil {
		return err
	}

	frames, err := e.client.OpenCombinedStream(runCtx, streamPath)
	if err != nil {
		return fmt.Errorf("binancestream: opening combined stream: %w", err)
	}

	go e.dispatchLoop(runCtx, frames)

	for _, symbol := range markets {
		go e.loadDepthSnapshot(runCtx, symbol)
		go e.loadRecentTrades(runCtx, symbol)
		for _, period := range periods {
			go e.loadKlineHistory(runCtx, symbol, period)
		}
	}

	return nil
}

// Stop closes the combined WebSocket and marks the engine closed so any
// outstanding REST callbacks become no-ops (spec.md §5, "Cancellation").
func (e *StreamEngine) Stop() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.cancel
	openBooks := len(e.firstDepthDiff)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = e.client.Close()
	transport.OpenOrderBooksGauge.Sub(float64(openBooks))
}

func (e *StreamEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// OrderBook returns the order book for symbol, if the engine tracks it.
func (e *StreamEngine) OrderBook(symbol *domain.MarketSymbol) (*domain.OrderBook, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, ok := e.books[symbol.String()]
	return ob, ok
}

// TradeBook returns the trade book for symbol, if the engine tracks it.
func (e *StreamEngine) TradeBook(symbol *domain.MarketSymbol) (*domain.TradeBook, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tb, ok := e.trades[symbol.String()]
	return tb, ok
}

// KLineSeries returns the k-line series for symbol, if the engine tracks
// it.
func (e *StreamEngine) KLineSeries(symbol *domain.MarketSymbol) (*domain.KLineSeries, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ks, ok := e.klines[symbol.String()]
	return ks, ok
}

func buildCombinedStreamPath(markets []*domain.MarketSymbol, periods []int) (string, error) {
	var topics []string
	for _, symbol := range markets {
		joined := symbol.Join("")
		topics = append(topics, joined+"@depth", joined+"@ticker", joined+"@trade")
		for _, period := range periods {
			label, err := config.PeriodLabel(period)
			if err != nil {
				return "", err
			}
			topics = append(topics, fmt.Sprintf("%s@kline_%s", joined, label))
		}
	}
	return strings.Join(topics, "/"), nil
}

// dispatchLoop is the single cooperative dispatcher thread spec.md §5
// describes: every frame off the combined stream is routed here, in
// arrival order, and handlers run to completion before the next frame is
// read.
func (e *StreamEngine) dispatchLoop(ctx context.Context, frames <-chan transport.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-frames:
			if !ok {
				return
			}
			e.dispatch(envelope)
		}
	}
}

func (e *StreamEngine) dispatch(envelope transport.Envelope) {
	if e.isClosed() {
		return
	}

	parts := strings.SplitN(envelope.Stream, "@", 2)
	if len(parts) != 2 {
		logger.Printf("dropping frame with malformed stream name %q", envelope.Stream)
		return
	}
	symbolRaw, kind := parts[0], parts[1]

	switch {
	case kind == "depth":
		e.handleDepth(symbolRaw, envelope.Data)
	case kind == "ticker":
		e.handleTicker(symbolRaw, envelope.Data)
	case kind == "trade":
		e.handleTrade(symbolRaw, envelope.Data)
	case strings.HasPrefix(kind, "kline_"):
		e.handleKline(symbolRaw, envelope.Data)
	default:
		logger.Printf("dropping frame with unrecognized kind %q", kind)
	}
}

func (e *StreamEngine) symbolKey(rawUpper string) string {
	// Combined-stream topics use lowercase concatenated symbols
	// (e.g. "btcusdt"); MarketSymbol.String() renders "btc_usdt", so
	// look the book up by scanning tracked markets rather than trying to
	// split base/quote out of the concatenated form.
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.markets {
		if m.Join("") == rawUpper {
			return m.String()
		}
	}
	return ""
}

func (e *StreamEngine) handleDepth(rawSymbol string, data json.RawMessage) {
	key := e.symbolKey(rawSymbol)
	if key == "" {
		return
	}

	var frame depthDiffFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Printf("depth: malformed frame for %s: %s", rawSymbol, err)
		return
	}

	e.mu.Lock()
	book := e.books[key]
	isFirst := e.firstDepthDiff[key]
	e.mu.Unlock()

	if book == nil {
		return
	}

	diff := &domain.DepthDiff{
		SequenceStart: frame.FirstUpdateID,
		SequenceEnd:   frame.FinalUpdateID,
		Bids:          frame.Bids,
		Asks:          frame.Asks,
	}

	err := e.validator.Validate(diff, book.Generation(), isFirst)
	switch err {
	case nil:
		var bidDelta, askDelta int
		for _, lvl := range diff.Bids {
			d, _, applyErr := book.Bid(lvl[0], lvl[1], diff.SequenceEnd)
			if applyErr == nil {
				bidDelta += d
			}
		}
		for _, lvl := range diff.Asks {
			d, _, applyErr := book.Ask(lvl[0], lvl[1], diff.SequenceEnd)
			if applyErr == nil {
				askDelta += d
			}
		}
		if config.DebugMode {
			logger.Printf("%s depth: bidDelta=%d askDelta=%d generation=%d", rawSymbol, bidDelta, askDelta, diff.SequenceEnd)
		}
		e.mu.Lock()
		e.firstDepthDiff[key] = false
		e.mu.Unlock()

	case domain.ErrOrderBookUpdateOutdated:
		// Predates the snapshot; silently dropped per spec.md §4.1.
		transport.StaleDiffsDroppedCounter.Inc()

	case domain.ErrOrderBookUpdateOutOfSequence:
		transport.OutOfSequenceDiffsCounter.Inc()
		if isFirst {
			logger.Printf("%s: first diff after snapshot failed sequencing gate, resnapshotting", rawSymbol)
			market := e.findMarket(key)
			if market != nil {
				e.mu.Lock()
				e.depthPending++
				e.mu.Unlock()
				go e.loadDepthSnapshot(context.Background(), market)
			}
		} else {
			logger.Printf("%s: out-of-sequence diff dropped (spec.md §7: no resync mid-stream)", rawSymbol)
		}
	}
}

func (e *StreamEngine) findMarket(key string) *domain.MarketSymbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.markets {
		if m.String() == key {
			return m
		}
	}
	return nil
}

func (e *StreamEngine) handleTicker(rawSymbol string, data json.RawMessage) {
	key := e.symbolKey(rawSymbol)
	if key == "" {
		return
	}

	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Printf("ticker: malformed frame for %s: %s", rawSymbol, err)
		return
	}

	update, err := normalizeTicker(frame)
	if err != nil {
		logger.Printf("ticker: %s", err)
		return
	}

	e.bus.Emit(EventTicker, TickerMessage{Symbol: key, Data: update})
}

// normalizeTicker parses every numeric field to decimal.Decimal; only
// PriceChangePercent is kept as a raw wire string (spec.md §4.4).
func normalizeTicker(frame tickerFrame) (TickerUpdate, error) {
	low, err := decimal.NewFromString(frame.LowPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid low %q: %w", frame.LowPrice, err)
	}
	high, err := decimal.NewFromString(frame.HighPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid high %q: %w", frame.HighPrice, err)
	}
	last, err := decimal.NewFromString(frame.LastPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid last %q: %w", frame.LastPrice, err)
	}
	volume, err := decimal.NewFromString(frame.Volume)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid volume %q: %w", frame.Volume, err)
	}
	open, err := decimal.NewFromString(frame.OpenPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid open %q: %w", frame.OpenPrice, err)
	}
	sell, err := decimal.NewFromString(frame.BestAskPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid sell %q: %w", frame.BestAskPrice, err)
	}
	buy, err := decimal.NewFromString(frame.BestBidPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid buy %q: %w", frame.BestBidPrice, err)
	}
	avgPrice, err := decimal.NewFromString(frame.WeightedAvgPrice)
	if err != nil {
		return TickerUpdate{}, fmt.Errorf("ticker: invalid avgPrice %q: %w", frame.WeightedAvgPrice, err)
	}

	return TickerUpdate{
		Low:                low,
		High:               high,
		Last:               last,
		Volume:             volume,
		Open:               open,
		Sell:               sell,
		Buy:                buy,
		AvgPrice:           avgPrice,
		PriceChangePercent: frame.PriceChangePercent,
	}, nil
}

// handleTrade publishes trade_message. Per spec.md §9, the live-stream
// side is derived from `m` (BuyerIsMaker) exactly as the source system
// does — this is almost certainly inverted relative to the maker/taker
// convention (when the buyer is the maker, the aggressor is the seller),
// but spec.md instructs "flag, do not silently fix".
func (e *StreamEngine) handleTrade(rawSymbol string, data json.RawMessage) {
	key := e.symbolKey(rawSymbol)
	if key == "" {
		return
	}

	var frame tradeFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Printf("trade: malformed frame for %s: %s", rawSymbol, err)
		return
	}

	side := "sell"
	if frame.BuyerIsMaker {
		side = "buy"
	}

	update := TradeUpdate{
		TID:    frame.TradeID,
		Type:   side,
		DateS:  frame.EventTime / 1000,
		Price:  frame.Price,
		Amount: frame.Quantity,
	}

	e.bus.Emit(EventTrade, TradeMessage{Symbol: key, Data: update})
}

func (e *StreamEngine) handleKline(rawSymbol string, data json.RawMessage) {
	key := e.symbolKey(rawSymbol)
	if key == "" {
		return
	}

	var frame klineFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Printf("kline: malformed frame for %s: %s", rawSymbol, err)
		return
	}

	period, err := config.PeriodFromLabel(frame.Kline.Interval)
	if err != nil {
		logger.Printf("kline: %s", err)
		return
	}

	e.mu.Lock()
	series := e.klines[key]
	e.mu.Unlock()
	if series == nil {
		return
	}

	point, err := series.Filter(period, frame.Kline.OpenTime,
		frame.Kline.Open, frame.Kline.High, frame.Kline.Low, frame.Kline.Close, frame.Kline.Volume)
	if err != nil {
		logger.Printf("kline: normalizing frame for %s: %s", rawSymbol, err)
		return
	}

	e.bus.Emit(EventKline, KlineMessage{Symbol: key, Period: period, Data: point})
}

// --- REST snapshot loading -------------------------------------------------

func (e *StreamEngine) loadDepthSnapshot(ctx context.Context, symbol *domain.MarketSymbol) {
	if symbol == nil || e.isClosed() {
		return
	}

	resp, err := e.client.Get(ctx, "/api/v3/depth", url.Values{
		"symbol": {strings.ToUpper(symbol.Join(""))},
		"limit":  {strconv.Itoa(e.cfg.OrderBookSnapshotLimit)},
	})
	if e.isClosed() {
		return
	}
	if err != nil || resp.StatusCode >= 300 {
		e.bus.Emit(EventError, fmt.Sprintf("depth snapshot for %s failed: %v (status=%d)", symbol, err, statusOf(resp)))
		return
	}

	var body depthSnapshotResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		e.bus.Emit(EventError, fmt.Sprintf("depth snapshot for %s: malformed body: %s", symbol, err))
		return
	}

	key := symbol.String()
	e.mu.Lock()
	book := e.books[key]
	e.mu.Unlock()
	if book == nil {
		return
	}

	if err := book.Commit(body.LastUpdateID, body.Bids, body.Asks); err != nil {
		e.bus.Emit(EventError, fmt.Sprintf("depth snapshot for %s: commit failed: %s", symbol, err))
		return
	}

	e.mu.Lock()
	_, alreadyOpen := e.firstDepthDiff[key]
	e.firstDepthDiff[key] = true
	e.depthPending--
	pendingZero := e.depthPending == 0
	e.mu.Unlock()

	if !alreadyOpen {
		transport.OpenOrderBooksGauge.Inc()
	}

	if pendingZero {
		e.bus.Emit(EventOrderBookOpen, e.snapshotBooks())
	}
}

func (e *StreamEngine) snapshotBooks() map[string]*domain.OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*domain.OrderBook, len(e.books))
	for k, v := range e.books {
		out[k] = v
	}
	return out
}

func (e *StreamEngine) loadRecentTrades(ctx context.Context, symbol *domain.MarketSymbol) {
	if e.isClosed() {
		return
	}

	resp, err := e.client.Get(ctx, "/api/v3/trades", url.Values{
		"symbol": {strings.ToUpper(symbol.Join(""))},
		"limit":  {strconv.Itoa(e.cfg.RecentTradesLimit)},
	})
	if e.isClosed() {
		return
	}
	if err != nil || resp.StatusCode >= 300 {
		e.bus.Emit(EventError, fmt.Sprintf("recent trades for %s failed: %v (status=%d)", symbol, err, statusOf(resp)))
		return
	}

	var entries []recentTradeEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		e.bus.Emit(EventError, fmt.Sprintf("recent trades for %s: malformed body: %s", symbol, err))
		return
	}

	key := symbol.String()
	e.mu.Lock()
	tb := e.trades[key]
	e.mu.Unlock()
	if tb == nil {
		return
	}

	for _, entry := range entries {
		// Per spec.md §9: the REST seed derives side from isBuyerMaker
		// the same (likely inverted) way the live stream derives it from
		// `m`. Kept literal, flagged, not silently fixed.
		side := domain.TradeSideSell
		if entry.IsBuyerMaker {
			side = domain.TradeSideBuy
		}

		price, perr := decimal.NewFromString(entry.Price)
		amount, aerr := decimal.NewFromString(entry.Qty)
		if perr != nil || aerr != nil {
			continue
		}

		tb.Add(domain.TradeEntry{
			TID:    entry.ID,
			Side:   side,
			TsMs:   entry.Time,
			Price:  price,
			Amount: amount,
		})
	}

	e.mu.Lock()
	e.tradePending--
	pendingZero := e.tradePending == 0
	e.mu.Unlock()

	if pendingZero {
		e.bus.Emit(EventTradeBookOpen, e.snapshotTrades())
	}
}

func (e *StreamEngine) snapshotTrades() map[string]*domain.TradeBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*domain.TradeBook, len(e.trades))
	for k, v := range e.trades {
		out[k] = v
	}
	return out
}

func (e *StreamEngine) loadKlineHistory(ctx context.Context, symbol *domain.MarketSymbol, period int) {
	if e.isClosed() {
		return
	}

	label, err := config.PeriodLabel(period)
	if err != nil {
		e.bus.Emit(EventError, err.Error())
		return
	}

	resp, err := e.client.Get(ctx, "/api/v3/klines", url.Values{
		"symbol":   {strings.ToUpper(symbol.Join(""))},
		"interval": {label},
	})
	if e.isClosed() {
		return
	}
	if err != nil || resp.StatusCode >= 300 {
		e.bus.Emit(EventError, fmt.Sprintf("kline history for %s/%s failed: %v (status=%d)", symbol, label, err, statusOf(resp)))
		return
	}

	var rows [][]any
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		e.bus.Emit(EventError, fmt.Sprintf("kline history for %s/%s: malformed body: %s", symbol, label, err))
		return
	}

	key := symbol.String()
	e.mu.Lock()
	series := e.klines[key]
	e.mu.Unlock()
	if series == nil {
		return
	}

	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, ok := row[0].(float64)
		if !ok {
			continue
		}
		open, o1 := row[1].(string)
		high, o2 := row[2].(string)
		low, o3 := row[3].(string)
		closeP, o4 := row[4].(string)
		volume, o5 := row[5].(string)
		if !(o1 && o2 && o3 && o4 && o5) {
			continue
		}

		if err := series.Add(period, int64(openTime), open, high, low, closeP, volume); err != nil {
			logger.Printf("kline history for %s/%s: %s", symbol, label, err)
		}
	}

	e.mu.Lock()
	e.klinePendingBySymbol[key]--
	symbolDone := e.klinePendingBySymbol[key] == 0
	e.klinePending--
	globalDone := e.klinePending == 0
	e.mu.Unlock()

	if symbolDone {
		e.bus.Emit(EventKlineSymbolRdy, key)
	}
	if globalDone {
		e.bus.Emit(EventKlineOpen, e.snapshotKlines())
	}
}

func (e *StreamEngine) snapshotKlines() map[string]*domain.KLineSeries {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*domain.KLineSeries, len(e.klines))
	for k, v := range e.klines {
		out[k] = v
	}
	return out
}

func statusOf(resp *transport.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
