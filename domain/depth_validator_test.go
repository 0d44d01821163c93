package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinanceDepthUpdateValidator_FirstDiffMustStraddleSnapshot(t *testing.T) {
	v := BinanceDepthUpdateValidator{}

	err := v.Validate(&DepthDiff{SequenceStart: 101, SequenceEnd: 150}, 100, true)
	assert.NoError(t, err)

	err = v.Validate(&DepthDiff{SequenceStart: 151, SequenceEnd: 200}, 100, true)
	assert.ErrorIs(t, err, ErrOrderBookUpdateOutOfSequence)
}

func TestBinanceDepthUpdateValidator_OutdatedDropped(t *testing.T) {
	v := BinanceDepthUpdateValidator{}

	err := v.Validate(&DepthDiff{SequenceStart: 90, SequenceEnd: 100}, 150, true)
	assert.ErrorIs(t, err, ErrOrderBookUpdateOutdated)
}

func TestBinanceDepthUpdateValidator_SubsequentMustChain(t *testing.T) {
	v := BinanceDepthUpdateValidator{}

	err := v.Validate(&DepthDiff{SequenceStart: 151, SequenceEnd: 160}, 150, false)
	assert.NoError(t, err)

	err = v.Validate(&DepthDiff{SequenceStart: 155, SequenceEnd: 160}, 150, false)
	assert.ErrorIs(t, err, ErrOrderBookUpdateOutOfSequence)
}
