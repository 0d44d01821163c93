package domain

// DepthDiff is a single incremental depth-update frame: Binance's U
// (SequenceStart) / u (SequenceEnd) pair plus the raw level changes.
type DepthDiff struct {
	SequenceStart int64 // Binance "U"
	SequenceEnd   int64 // Binance "u"
	Bids          [][2]string
	Asks          [][2]string
}

// DepthUpdateValidator decides whether a diff may be applied to a book at
// its current generation (spec.md §4.4's snapshot/diff fusion rule). It
// is kept as an interface — even though Binance is the only
// implementation here — because the teacher repo structures the same
// concern as an interface (IDepthUpdateValidator) to let each upstream
// define its own sequencing contract.
type DepthUpdateValidator interface {
	// Validate reports nil when diff may be applied. firstSinceSnapshot
	// must be true only for the first diff examined after a
	// Commit — Binance's depth semantics require that one diff to
	// straddle the snapshot's generation (U <= G+1 <= u); every
	// subsequent diff must instead chain exactly off the previous one
	// (U == lastGeneration+1).
	Validate(diff *DepthDiff, bookGeneration int64, firstSinceSnapshot bool) error
}

// BinanceDepthUpdateValidator implements spec.md §4.4's sequencing rule,
// grounded on the teacher's provider/binance/depth-update-validator.go.
type BinanceDepthUpdateValidator struct{}

func (BinanceDepthUpdateValidator) Validate(diff *DepthDiff, bookGeneration int64, firstSinceSnapshot bool) error {
	// Drop any event where u is <= lastUpdateId in the snapshot.
	if diff.SequenceEnd <= bookGeneration {
		return ErrOrderBookUpdateOutdated
	}

	if firstSinceSnapshot {
		// The first processed event should have U <= lastUpdateId+1 AND
		// u >= lastUpdateId+1.
		if diff.SequenceStart <= bookGeneration+1 && diff.SequenceEnd >= bookGeneration+1 {
			return nil
		}
		return ErrOrderBookUpdateOutOfSequence
	}

	// While listening to the stream, each new event's U should equal the
	// previous event's u+1.
	if diff.SequenceStart != bookGeneration+1 {
		return ErrOrderBookUpdateOutOfSequence
	}

	return nil
}
