package blocktimer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jkbrsn/jsonrpc"
)

// DefaultJSONRPCMethod is the notification method used by WithJSONRPCNotifications when no
// method is given.
const DefaultJSONRPCMethod = "timer.event"

// WSHandler streams events as JSON text messages over a WebSocket connection, e.g. to a live
// dashboard. Writes are serialized, as gorilla/websocket allows one concurrent writer.
type WSHandler struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	timeouts  WSTimeouts
	rpcMethod string // Empty for plain JSON messages
}

// WSOption configures a WSHandler.
type WSOption func(*WSHandler)

// WithJSONRPCNotifications wraps every event in a JSON-RPC 2.0 notification, a request
// without an id, calling method with the event as params. An empty method selects
// DefaultJSONRPCMethod.
func WithJSONRPCNotifications(method string) WSOption {
	return func(h *WSHandler) {
		if method == "" {
			method = DefaultJSONRPCMethod
		}
		h.rpcMethod = method
	}
}

// NewWSHandler creates a WSHandler writing to an established connection. The handler takes
// ownership of conn and closes it in Close.
func NewWSHandler(conn *websocket.Conn, timeouts WSTimeouts, opts ...WSOption) (*WSHandler, error) {
	if conn == nil {
		return nil, invalidArgument("connection is nil")
	}
	if err := timeouts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return newWSHandler(conn, timeouts, opts), nil
}

func newWSHandler(conn *websocket.Conn, timeouts WSTimeouts, opts []WSOption) *WSHandler {
	h := &WSHandler{conn: conn, timeouts: timeouts}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DialWSHandler dials target and returns a WSHandler for the resulting connection.
func DialWSHandler(
	ctx context.Context,
	target string,
	header http.Header,
	timeouts WSTimeouts,
	opts ...WSOption,
) (*WSHandler, error) {
	if err := timeouts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	dialer := *websocket.DefaultDialer
	if timeouts.Handshake > 0 {
		dialer.HandshakeTimeout = timeouts.Handshake
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return newWSHandler(conn, timeouts, opts), nil
}

// Name implements NamedHandler.
func (h *WSHandler) Name() string { return "websocket" }

// OnTimerEvent implements TimerHandler.
func (h *WSHandler) OnTimerEvent(event TimerEvent) error {
	data, err := h.encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return ErrHandlerClosed
	}
	if h.timeouts.Write > 0 {
		if err := h.conn.SetWriteDeadline(time.Now().Add(h.timeouts.Write)); err != nil {
			return err
		}
	}
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// encode renders event as a plain JSON object or as a JSON-RPC notification.
func (h *WSHandler) encode(event TimerEvent) ([]byte, error) {
	data, err := marshalEvent(event)
	if err != nil || h.rpcMethod == "" {
		return data, err
	}
	return sonic.Marshal(&jsonrpc.Request{
		JSONRPC: "2.0",
		Method:  h.rpcMethod,
		Params:  json.RawMessage(data),
	})
}

// Close sends a close frame and closes the connection. Closing twice is a no-op.
func (h *WSHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil
	}
	conn := h.conn
	h.conn = nil

	formattedCloseMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(h.timeouts.closeTimeout())
	writeErr := conn.WriteControl(websocket.CloseMessage, formattedCloseMessage, deadline)
	if err := conn.Close(); err != nil {
		return err
	}
	return writeErr
}
