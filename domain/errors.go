package domain

import "errors"

var (
	// ErrOrderBookUpdateOutOfSequence is returned when a depth diff does
	// not fit the book's generation: the first diff after a snapshot does
	// not straddle it, or a later diff's first update id is not exactly
	// the next expected generation. The book was not mutated; the stream
	// engine resnapshots when this happens to the first diff after a
	// snapshot and drops the diff otherwise (spec.md §4.4).
	ErrOrderBookUpdateOutOfSequence = errors.New("orderbook: update is out of sequence")

	// ErrOrderBookUpdateOutdated is returned when a diff's final update
	// id is at or behind the book's current generation. It is not an
	// error condition in the taxonomy sense (spec.md §7 calls the drop
	// "an invariant, not an error") but is surfaced so callers can
	// distinguish it from ErrOrderBookUpdateOutOfSequence for metrics.
	ErrOrderBookUpdateOutdated = errors.New("orderbook: update is outdated")

	// ErrUnknownPeriod is raised synchronously when a KLineSeries
	// operation names a period outside config.RecognizedPeriods
	// (spec.md §4.3, §7.1).
	ErrUnknownPeriod = errors.New("klineseries: unrecognized period")

	// ErrEmptyMarkets is raised synchronously at StreamEngine.Start when
	// given an empty symbol list (spec.md §7.1).
	ErrEmptyMarkets = errors.New("streamengine: markets list is empty")

	// ErrAuthFailed is the single coded auth-layer error taxonomy entry
	// from spec.md §6/§7.5. The underlying transport reason is wrapped,
	// never discarded.
	ErrAuthFailed = errors.New("auth: authorization failed")
)

// AuthFailedCode is the opaque numeric code the source system attaches to
// ErrAuthFailed, carried alongside the wrapped reason (spec.md §6).
const AuthFailedCode = 2001
