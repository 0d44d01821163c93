package binancestream

// Package-level wire DTOs for Binance's REST and combined-WebSocket
// payloads, grounded on the teacher's provider/binance/stream-api.go
// DepthUpdateData and the pack's eyes2near-binance-ws-pubsub /
// kenter1643-BinanceAutoBot JSON tag conventions for ticker/trade/kline
// frames the teacher itself never modeled.

import "github.com/shopspring/decimal"

// depthDiffFrame is the "depth" stream payload (spec.md §6).
type depthDiffFrame struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][2]string `json:"b"`
	Asks          [][2]string `json:"a"`
}

// tickerFrame is the "ticker" (24h rolling window) stream payload.
type tickerFrame struct {
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChangePercent string `json:"P"`
	LastPrice          string `json:"c"`
	OpenPrice          string `json:"o"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
	BestBidPrice       string `json:"b"`
	BestAskPrice       string `json:"a"`
	WeightedAvgPrice   string `json:"w"`
}

// tradeFrame is the "trade" stream payload.
type tradeFrame struct {
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

// klineFrame is the "kline_<interval>" stream payload.
type klineFrame struct {
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
}

// depthSnapshotResponse is the REST /api/v3/depth response body.
type depthSnapshotResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// recentTradeEntry is one element of the REST /api/v3/trades response.
type recentTradeEntry struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// TickerUpdate is the normalized 24h ticker payload published on the
// event bus (spec.md §4.4). Every numeric field is parsed to
// decimal.Decimal at ingestion; PriceChangePercent is kept as the raw
// wire string since it is a display percentage, not a tradable
// price/volume quantity.
type TickerUpdate struct {
	Low                decimal.Decimal
	High               decimal.Decimal
	Last               decimal.Decimal
	Volume             decimal.Decimal
	Open               decimal.Decimal
	Sell               decimal.Decimal
	Buy                decimal.Decimal
	AvgPrice           decimal.Decimal
	PriceChangePercent string
}

// TradeUpdate is the normalized trade payload published on the event bus
// (spec.md §4.4). Type is derived from BuyerIsMaker literally, per
// spec.md §9's flagged (not silently fixed) maker/taker inversion.
type TradeUpdate struct {
	TID    int64
	Type   string
	DateS  int64
	Price  string
	Amount string
}
