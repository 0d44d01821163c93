package config_test

import (
	"testing"

	"github.com/spooky-finn/go-binance-marketdata/config"
	"github.com/stretchr/testify/assert"
)

// TestPeriodLabel_RoundTripsRecognizedPeriods is spec.md §8's round-trip
// invariant, literally: PeriodFromLabel(PeriodLabel(p)) == p for every
// period in RecognizedPeriods.
func TestPeriodLabel_RoundTripsRecognizedPeriods(t *testing.T) {
	for period := range config.RecognizedPeriods {
		label, err := config.PeriodLabel(period)
		assert.NoError(t, err, "PeriodLabel(%d) should not error", period)

		roundTripped, err := config.PeriodFromLabel(label)
		assert.NoError(t, err, "PeriodFromLabel(%q) should not error", label)
		assert.Equal(t, period, roundTripped, "period %d should round-trip through label %q", period, label)
	}
}

func TestPeriodLabel_UnrecognizedPeriodErrors(t *testing.T) {
	_, err := config.PeriodLabel(7)
	assert.Error(t, err, "PeriodLabel(7) should error, 7 is not a recognized period")
}

func TestPeriodFromLabel_UnrecognizedLabelErrors(t *testing.T) {
	_, err := config.PeriodFromLabel("7m")
	assert.Error(t, err, `PeriodFromLabel("7m") should error, "7m" is not a recognized label`)
}
