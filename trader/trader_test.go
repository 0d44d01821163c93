package trader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-binance-marketdata/config"
	"github.com/spooky-finn/go-binance-marketdata/domain"
	"github.com/spooky-finn/go-binance-marketdata/eventbus"
	"github.com/spooky-finn/go-binance-marketdata/transport"
	"github.com/stretchr/testify/assert"
)

func newOrderRequest(t *testing.T) *domain.OrderRequest {
	t.Helper()
	symbol, err := domain.NewMarketSymbol("btc", "usdt")
	assert.NoError(t, err)
	return &domain.OrderRequest{
		Symbol:   symbol,
		Type:     "limit",
		Side:     domain.TradeSideBuy,
		Quantity: decimal.NewFromFloat(0.01),
		Price:    decimal.NewFromFloat(50000),
	}
}

// TestTrader_DefersUntilReady is the literal scenario: calling Order
// before readiness must not issue any HTTP POST; flipping ready must
// submit exactly once and fire submit(42) from the mocked response.
func TestTrader_DefersUntilReady(t *testing.T) {
	var postCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&postCount, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orderId":42}`))
	}))
	defer server.Close()

	cfg := &config.Config{RestBaseURL: server.URL, APIKey: "k", SecretKey: "s"}
	client := transport.NewClient(cfg)
	bus := eventbus.New()
	tr := New(client, bus)

	submitted := make(chan int64, 1)
	trade := tr.Order(context.Background(), time.Second, newOrderRequest(t))
	trade.OnSubmit(func(orderID int64) { submitted <- orderID })

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&postCount), "must not POST before ready")

	SignalReady(bus)

	select {
	case id := <-submitted:
		assert.Equal(t, int64(42), id)
	case <-time.After(time.Second):
		t.Fatal("submit callback never fired after ready")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&postCount), "must POST exactly once")
}

func TestTrader_SubmitsImmediatelyWhenAlreadyReady(t *testing.T) {
	var postCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&postCount, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orderId":7}`))
	}))
	defer server.Close()

	cfg := &config.Config{RestBaseURL: server.URL, APIKey: "k", SecretKey: "s"}
	client := transport.NewClient(cfg)
	bus := eventbus.New()
	tr := New(client, bus)
	SignalReady(bus)

	submitted := make(chan int64, 1)
	trade := tr.Order(context.Background(), time.Second, newOrderRequest(t))
	trade.OnSubmit(func(orderID int64) { submitted <- orderID })

	select {
	case id := <-submitted:
		assert.Equal(t, int64(7), id)
	case <-time.After(time.Second):
		t.Fatal("submit callback never fired")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&postCount))
}

func TestTrader_EmitsErrorOnHTTPFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1013,"msg":"bad request"}`))
	}))
	defer server.Close()

	cfg := &config.Config{RestBaseURL: server.URL, APIKey: "k", SecretKey: "s"}
	client := transport.NewClient(cfg)
	bus := eventbus.New()
	tr := New(client, bus)
	SignalReady(bus)

	errored := make(chan any, 1)
	trade := tr.Order(context.Background(), time.Second, newOrderRequest(t))
	trade.OnError(func(reason any) { errored <- reason })

	select {
	case reason := <-errored:
		resp, ok := reason.(*transport.Response)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("error callback never fired")
	}
}

func TestTrader_EmitsErrAuthFailedOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	}))
	defer server.Close()

	cfg := &config.Config{RestBaseURL: server.URL, APIKey: "k", SecretKey: "s"}
	client := transport.NewClient(cfg)
	bus := eventbus.New()
	tr := New(client, bus)
	SignalReady(bus)

	errored := make(chan any, 1)
	trade := tr.Order(context.Background(), time.Second, newOrderRequest(t))
	trade.OnError(func(reason any) { errored <- reason })

	select {
	case reason := <-errored:
		err, ok := reason.(error)
		assert.True(t, ok)
		assert.ErrorIs(t, err, domain.ErrAuthFailed)
		assert.Contains(t, err.Error(), "Invalid API-key")
	case <-time.After(time.Second):
		t.Fatal("auth error callback never fired")
	}
}

func TestTrader_EmitsErrorOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orderId":1}`))
	}))
	defer server.Close()

	cfg := &config.Config{RestBaseURL: server.URL, APIKey: "k", SecretKey: "s"}
	client := transport.NewClient(cfg)
	bus := eventbus.New()
	tr := New(client, bus)
	SignalReady(bus)

	errored := make(chan any, 1)
	trade := tr.Order(context.Background(), 5*time.Millisecond, newOrderRequest(t))
	trade.OnError(func(reason any) { errored <- reason })

	select {
	case <-errored:
	case <-time.After(time.Second):
		t.Fatal("timeout error callback never fired")
	}
}
