// Package trader implements per-order submission (spec.md §2 component
// F, §4.5): Order returns a Trade handle immediately, deferring the
// actual HTTP POST until an external readiness signal fires on the
// shared event bus. Grounded on the teacher's provider/binance
// sync-api.go (signed REST order submission) and domain/trade.go's
// Subscription[T] callback idiom, generalized here into the bus-based
// one-shot readiness wait spec.md §4.5 and §9 describe.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spooky-finn/go-binance-marketdata/domain"
	"github.com/spooky-finn/go-binance-marketdata/eventbus"
	"github.com/spooky-finn/go-binance-marketdata/transport"
)

var logger = log.New(os.Stdout, "[trader] ", log.LstdFlags)

// ReadyEvent is the bus topic an external component (the stream engine,
// an account-stream subscriber) emits once to unblock deferred orders
// (spec.md §4.5: "set by an external component ... edge-triggered").
const ReadyEvent = "ready"

// SignalReady emits ReadyEvent once. It is a thin convenience wrapper;
// any component holding the shared bus can call bus.Emit(ReadyEvent)
// directly instead.
func SignalReady(bus *eventbus.Bus) {
	bus.Emit(ReadyEvent)
}

// orderResponse is the REST /api/v3/order success body's only field this
// package cares about.
type orderResponse struct {
	OrderID int64 `json:"orderId"`
}

// Trader submits orders against the signed REST endpoint, deferring
// submission until readiness (spec.md §4.5).
type Trader struct {
	client *transport.Client
	bus    *eventbus.Bus

	mu    sync.Mutex
	ready bool
}

// New constructs a Trader bound to client for submission and bus for the
// readiness signal. It subscribes to ReadyEvent immediately so that a
// readiness flip occurring between construction and the first Order call
// is still observed.
func New(client *transport.Client, bus *eventbus.Bus) *Trader {
	t := &Trader{client: client, bus: bus}
	bus.On(ReadyEvent, func(args ...any) {
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()
	})
	return t
}

// Order returns a Trade handle immediately (spec.md §4.5, "the Trade
// handle is returned immediately"). If the trader is already ready,
// submission starts on its own goroutine now; otherwise it is deferred
// via a one-shot subscription on ReadyEvent. timeout bounds the
// eventual HTTP round trip via context.WithTimeout, resolving spec.md
// §9's open question on enforcement.
func (t *Trader) Order(ctx context.Context, timeout time.Duration, req *domain.OrderRequest) *domain.Trade {
	trade := domain.NewTrade(req)

	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()

	if ready {
		go t.submit(ctx, timeout, trade)
		return trade
	}

	t.bus.Once(ReadyEvent, func(args ...any) {
		t.submit(ctx, timeout, trade)
	})
	return trade
}

func (t *Trader) submit(ctx context.Context, timeout time.Duration, trade *domain.Trade) {
	submitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := trade.Request
	form := url.Values{
		"symbol":   {req.Symbol.Join("")},
		"side":     {string(req.Side)},
		"type":     {req.Type},
		"quantity": {req.Quantity.String()},
	}
	if !req.Price.IsZero() {
		form.Set("price", req.Price.String())
	}

	resp, err := t.client.PostSigned(submitCtx, "/api/v3/order", form)
	if err != nil {
		if submitCtx.Err() != nil {
			trade.EmitError(fmt.Errorf("trader: submission timed out: %w", submitCtx.Err()))
			return
		}
		trade.EmitError(err)
		return
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Binance's signed-endpoint auth failure (bad key, bad signature,
		// missing permission) lands here as 401; spec.md §6/§7.5's single
		// coded auth taxonomy entry, reason never discarded.
		trade.EmitError(fmt.Errorf("trader: %w (code=%d): %s", domain.ErrAuthFailed, domain.AuthFailedCode, strings.TrimSpace(string(resp.Body))))
		return
	}

	if resp.StatusCode >= 300 {
		trade.EmitError(resp)
		return
	}

	var body orderResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		trade.EmitError(fmt.Errorf("trader: malformed order response: %w", err))
		return
	}

	logger.Printf("order submitted for %s: id=%d correlation=%s", req.Symbol, body.OrderID, trade.CorrelationID)
	trade.EmitSubmit(body.OrderID)
}
