package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
	"github.com/spooky-finn/go-binance-marketdata/config"
)

var logger = log.New(os.Stdout, "[transport] ", log.LstdFlags)

// Response wraps a completed REST round trip. StatusCode >= 300 is the
// "Upstream HTTP" error taxonomy entry from spec.md §7.3; the caller
// decides what to do with it — the Client itself never retries
// (spec.md §7, "the core does not retry").
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the thin transport spec.md §2 component D describes: REST
// GET/POST plus one combined WebSocket connection. It carries no
// upstream-specific semantics — StreamEngine and Trader layer that on
// top. Grounded on the teacher's provider/binance/stream-client.go
// (combined-stream dial/subscribe) and sync-api.go (signed REST calls).
type Client struct {
	cfg        *config.Config
	httpClient *http.Client

	wsMu sync.Mutex
	ws   *recws.RecConn
}

// NewClient constructs a Client bound to cfg's REST/stream base URLs and
// credentials. It does not dial anything until OpenCombinedStream is
// called.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get issues an unsigned REST GET against path with the given
// query params, matching spec.md §6's REST endpoint table.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, false)
}

// PostSigned issues a signed REST POST, used for order submission
// (spec.md §6, "Submit order (POST, signed)").
func (c *Client) PostSigned(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, form, true)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) (*Response, error) {
	if params == nil {
		params = url.Values{}
	}

	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	reqURL := c.cfg.RestBaseURL + path
	var req *http.Request
	var err error

	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, reqURL+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}

	if c.cfg.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: reading response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// OpenCombinedStream dials the combined WebSocket at
// cfg.StreamBaseURL?streams=<streamPath> and returns a channel of decoded
// envelopes. The connection auto-reconnects (recws) but does not
// resubscribe on its own; spec.md §4.4 leaves reconnection to a
// supervisor, so the returned channel simply stops delivering frames
// across a reconnect gap rather than replaying missed ones.
func (c *Client) OpenCombinedStream(ctx context.Context, streamPath string) (<-chan Envelope, error) {
	conn := &recws.RecConn{
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: 9 * time.Minute,
	}

	dialURL := fmt.Sprintf("%s?streams=%s", c.cfg.StreamBaseURL, streamPath)
	conn.Dial(dialURL, nil)

	c.wsMu.Lock()
	c.ws = conn
	c.wsMu.Unlock()

	out := make(chan Envelope)
	go c.readLoop(ctx, conn, out)

	return out, nil
}

func (c *Client) readLoop(ctx context.Context, conn *recws.RecConn, out chan<- Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("combined stream read error: %s", err)
			continue
		}
		if messageType != websocket.TextMessage {
			// Combined-stream frames are always text/JSON; pings/pongs and
			// any binary frame carry no market data.
			continue
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			logger.Printf("combined stream: malformed frame: %s", err)
			continue
		}
		if envelope.Stream == "" {
			// Subscribe/unsubscribe ack frames carry no "stream" field;
			// they are not market data and are dropped here.
			continue
		}

		select {
		case out <- envelope:
		case <-ctx.Done():
			return
		}
	}
}

// Close tears down the combined WebSocket connection, if one is open.
func (c *Client) Close() error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return nil
	}
	return c.ws.NetConn().Close()
}
