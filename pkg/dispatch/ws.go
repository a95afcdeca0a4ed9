package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lumenvoice/voxloop/pkg/errorsx"
)

// WSConfig configures the streaming transport.
type WSConfig struct {
	URL     string
	Timeout time.Duration
}

// WSDispatcher exchanges the same request/response as the HTTP
// transport over one short-lived websocket: a JSON text frame with the
// voice identifier, a binary frame with the WAV bytes, then one JSON
// text frame back. Useful against backends that keep a socket open for
// lower handshake latency per turn.
type WSDispatcher struct {
	cfg WSConfig
}

func NewWS(cfg WSConfig) (*WSDispatcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing backend url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WSDispatcher{cfg: cfg}, nil
}

func (d *WSDispatcher) Name() string { return "websocket" }

type wsHello struct {
	VoiceID string `json:"voice_id"`
}

func (d *WSDispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.Timeout,
	}
	conn, _, err := dialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	defer conn.Close()

	deadline := time.Now().Add(d.cfg.Timeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	hello, err := json.Marshal(wsHello{VoiceID: req.VoiceID})
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, req.Audio); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}

	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonDispatchSend)
	}
	if msgType != websocket.TextMessage {
		return Result{}, errorsx.Wrap(
			errors.New("expected text result frame"), errorsx.ReasonDispatchMalformed)
	}

	result, err := parseWire(raw)
	if err != nil {
		return Result{}, err
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return result, nil
}
