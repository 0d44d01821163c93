package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spooky-finn/go-binance-marketdata/binancestream"
	"github.com/spooky-finn/go-binance-marketdata/config"
	"github.com/spooky-finn/go-binance-marketdata/domain"
	"github.com/spooky-finn/go-binance-marketdata/eventbus"
	"github.com/spooky-finn/go-binance-marketdata/trader"
	"github.com/spooky-finn/go-binance-marketdata/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("loading config: %s\n", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	client := transport.NewClient(cfg)
	engine := binancestream.New(client, bus, cfg)
	tr := trader.New(client, bus)

	bus.On(binancestream.EventOrderBookOpen, func(args ...any) {
		books := args[0].(map[string]*domain.OrderBook)
		fmt.Printf("order books ready: %d symbols\n", len(books))
		trader.SignalReady(bus)
	})
	bus.On(binancestream.EventError, func(args ...any) {
		fmt.Printf("stream error: %v\n", args[0])
	})

	xmr, err := domain.NewMarketSymbol("xmr", "btc")
	if err != nil {
		fmt.Printf("building symbol: %s\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx, []*domain.MarketSymbol{xmr}, []int{1, 60}); err != nil {
		fmt.Printf("starting stream engine: %s\n", err)
		os.Exit(1)
	}
	defer engine.Stop()

	go func() {
		if err := transport.ServeMetrics(":9090"); err != nil {
			fmt.Printf("metrics server stopped: %s\n", err)
		}
	}()

	// Demonstrates a pre-readiness order: Order() returns immediately and
	// only actually submits once the ready barrier above fires.
	_ = tr.Order(ctx, 5*time.Second, &domain.OrderRequest{
		Symbol: xmr,
		Type:   "market",
		Side:   domain.TradeSideBuy,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
