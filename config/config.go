package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var logger = log.New(os.Stdout, "[config] ", log.LstdFlags)

// DebugMode gates verbose per-message logging in the stream engine's
// depth-diff handling. It mirrors the teacher repo's package-level
// config.DebugMode switch.
var DebugMode = os.Getenv("DEBUG") == "true"

// RecognizedPeriods is the fixed set of k-line periods, in minutes, that
// Binance serves and that KLineSeries will accept.
var RecognizedPeriods = map[int]struct{}{
	1: {}, 5: {}, 15: {}, 30: {},
	60: {}, 120: {}, 240: {}, 360: {}, 720: {},
	1440: {}, 4320: {}, 10080: {},
}

// PeriodLabels is the bijection between a period in minutes and Binance's
// interval label, e.g. 60 -> "1h".
var PeriodLabels = map[int]string{
	1: "1m", 5: "5m", 15: "15m", 30: "30m",
	60: "1h", 120: "2h", 240: "4h", 360: "6h", 720: "12h",
	1440: "1d", 4320: "3d", 10080: "1w",
}

// Config holds everything needed to dial Binance's REST and combined
// WebSocket endpoints and to sign trader requests.
type Config struct {
	RestBaseURL   string
	StreamBaseURL string

	APIKey    string
	SecretKey string

	// RecentTradesLimit is the "limit" query param used to seed the trade
	// tape on startup.
	RecentTradesLimit int

	// OrderBookSnapshotLimit bounds the depth REST snapshot.
	OrderBookSnapshotLimit int
}

// Load reads a .env file if present (missing is not an error, matching
// the teacher's godotenv.Load usage) and falls back to process env vars.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, relying on process environment")
	}

	cfg := &Config{
		RestBaseURL:            envOrDefault("BINANCE_REST_BASE_URL", "https://api.binance.com"),
		StreamBaseURL:          envOrDefault("BINANCE_STREAM_BASE_URL", "wss://stream.binance.com:9443/stream"),
		APIKey:                 os.Getenv("BINANCE_API_KEY"),
		SecretKey:              os.Getenv("BINANCE_SECRET_KEY"),
		RecentTradesLimit:      100,
		OrderBookSnapshotLimit: 1000,
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// PeriodLabel humanizes a period in minutes into Binance's interval label.
// It is the forward half of the bijection described in spec.md §4.3.
func PeriodLabel(period int) (string, error) {
	label, ok := PeriodLabels[period]
	if !ok {
		return "", fmt.Errorf("config: unrecognized k-line period %d", period)
	}
	return label, nil
}

// PeriodFromLabel is the inverse of PeriodLabel.
func PeriodFromLabel(label string) (int, error) {
	for period, l := range PeriodLabels {
		if l == label {
			return period, nil
		}
	}
	return 0, fmt.Errorf("config: unrecognized k-line interval label %q", label)
}
