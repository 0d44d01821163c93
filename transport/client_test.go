package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/spooky-finn/go-binance-marketdata/config"
	"github.com/stretchr/testify/assert"
)

func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cfg := &config.Config{
		RestBaseURL: server.URL,
		APIKey:      "test-key",
		SecretKey:   "test-secret",
	}
	return NewClient(cfg)
}

func TestClient_GetReturnsStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"lastUpdateId":1}`))
	}))
	defer server.Close()

	c := testClient(t, server)
	resp, err := c.Get(context.Background(), "/api/v3/depth", url.Values{"symbol": {"BTCUSDT"}})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "lastUpdateId")
}

func TestClient_GetSurfacesHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := testClient(t, server)
	resp, err := c.Get(context.Background(), "/api/v3/depth", nil)

	assert.NoError(t, err, "HTTP-level errors surface via status code, not err (spec.md §7.3)")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClient_PostSignedAddsSignatureAndAPIKeyHeader(t *testing.T) {
	var gotKey, gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-MBX-APIKEY")
		assert.NoError(t, r.ParseForm())
		gotSig = r.PostForm.Get("signature")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orderId":42}`))
	}))
	defer server.Close()

	c := testClient(t, server)
	resp, err := c.PostSigned(context.Background(), "/api/v3/order", url.Values{"symbol": {"BTCUSDT"}})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test-key", gotKey)
	assert.NotEmpty(t, gotSig)
}

func TestClient_SignIsDeterministic(t *testing.T) {
	c := &Client{cfg: &config.Config{SecretKey: "s3cr3t"}}
	assert.Equal(t, c.sign("a=1&b=2"), c.sign("a=1&b=2"))
	assert.NotEqual(t, c.sign("a=1&b=2"), c.sign("a=1&b=3"))
}
