package domain

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-binance-marketdata/config"
)

// volumeRoundingPlaces is the fixed-point rounding applied to every
// ingested k-line volume (spec.md §3).
const volumeRoundingPlaces = 4

// KLinePoint is a single normalized OHLCV candlestick (spec.md §3).
// OpenTime is stored in seconds, Volume rounded to 4 decimal places;
// both normalizations happen at ingestion, never at read time.
type KLinePoint struct {
	OpenTime int64
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// KLineSeries holds, per recognized period (in minutes), an ordered list
// of OHLCV points for one symbol (spec.md §4.3).
type KLineSeries struct {
	mu     sync.Mutex
	series map[int][]KLinePoint
}

// NewKLineSeries constructs an empty series.
func NewKLineSeries() *KLineSeries {
	return &KLineSeries{series: make(map[int][]KLinePoint)}
}

// Add normalizes and appends a point to period's list. It raises
// ErrUnknownPeriod synchronously for an unrecognized period (spec.md
// §4.3, §7.1).
func (ks *KLineSeries) Add(period int, openTimeMs int64, open, high, low, close, volume string) error {
	point, err := normalizeKLine(period, openTimeMs, open, high, low, close, volume)
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.series[period] = append(ks.series[period], point)
	return nil
}

// Filter normalizes the same way Add does but does not persist the
// result — used for live k-line updates that are forwarded on the event
// bus without being retained by the engine (spec.md §4.3, §4.4). Its
// result must be element-wise equal to what Add would have stored
// (spec.md §8's normalization-identity invariant).
func (ks *KLineSeries) Filter(period int, openTimeMs int64, open, high, low, close, volume string) (KLinePoint, error) {
	return normalizeKLine(period, openTimeMs, open, high, low, close, volume)
}

// Depth returns a full copy of the series, keyed by period.
func (ks *KLineSeries) Depth() map[int][]KLinePoint {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	out := make(map[int][]KLinePoint, len(ks.series))
	for period, points := range ks.series {
		cp := make([]KLinePoint, len(points))
		copy(cp, points)
		out[period] = cp
	}
	return out
}

func normalizeKLine(period int, openTimeMs int64, open, high, low, close, volume string) (KLinePoint, error) {
	if _, ok := config.RecognizedPeriods[period]; !ok {
		return KLinePoint{}, ErrUnknownPeriod
	}

	o, err := decimal.NewFromString(open)
	if err != nil {
		return KLinePoint{}, err
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return KLinePoint{}, err
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return KLinePoint{}, err
	}
	c, err := decimal.NewFromString(close)
	if err != nil {
		return KLinePoint{}, err
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return KLinePoint{}, err
	}

	return KLinePoint{
		OpenTime: openTimeMs / 1000,
		Open:     o,
		High:     h,
		Low:      l,
		Close:    c,
		Volume:   v.Round(volumeRoundingPlaces),
	}, nil
}
