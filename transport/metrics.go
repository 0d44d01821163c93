package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are ambient observability gauges/counters for the market-data
// client, grounded on the teacher's
// infrastructure/prometheus/promclient.go. They are registered (on a
// fresh registry) only by ServeMetrics and never required: a caller that
// never calls ServeMetrics simply never scrapes them.
var (
	OpenOrderBooksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "binance_marketdata_open_order_books",
		Help: "number of order books currently tracked by the stream engine",
	})

	StaleDiffsDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "binance_marketdata_stale_diffs_dropped_total",
		Help: "depth diffs dropped for having a generation at or behind the book",
	})

	OutOfSequenceDiffsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "binance_marketdata_out_of_sequence_diffs_total",
		Help: "depth diffs dropped for failing the U/u sequencing gate",
	})
)

// ServeMetrics registers the package's collectors on a fresh registry and
// serves /metrics on addr, blocking, exactly the way the teacher's
// StartPromClientServer does.
func ServeMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(OpenOrderBooksGauge, StaleDiffsDroppedCounter, OutOfSequenceDiffsCounter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Printf("prometheus metrics listening at %s", addr)
	return http.ListenAndServe(addr, mux)
}
