// Package transport is the thin Client described in spec.md §2 component
// D: REST GET/POST and a single combined WebSocket, with nothing
// upstream-specific baked in beyond request signing. It is grounded on
// the teacher's provider/binance/stream-client.go (combined-stream
// envelope + subscribe/unsubscribe protocol) and sync-api.go (signed
// REST calls).
package transport

import "encoding/json"

// Envelope is the combined-stream frame Binance wraps every message in:
// {"stream": "<symbol>@<kind>", "data": {...}}, with Data left undecoded
// so the stream engine can inspect Stream and pick the concrete payload
// type before unmarshaling Data a second time. Grounded on the teacher's
// provider/binance/stream-client.go Message[T], collapsed from a generic
// type to a single json.RawMessage-bodied struct since nothing here
// decodes Data in the same pass it reads Stream.
type Envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}
