package blocktimer

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

//
// Mocks
//

// recordingHandler records every event it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []TimerEvent
}

func (h *recordingHandler) OnTimerEvent(event TimerEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) Events() []TimerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TimerEvent(nil), h.events...)
}

func (h *recordingHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// failingHandler returns err on every event, or panics with it if panics is set.
type failingHandler struct {
	name   string
	err    error
	panics bool
	calls  atomic.Int32
}

func (h *failingHandler) Name() string { return h.name }

func (h *failingHandler) OnTimerEvent(TimerEvent) error {
	h.calls.Inc()
	if h.panics {
		panic(h.err)
	}
	return h.err
}

// stepClock returns a time advanced by step on every call, starting from the current time.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Now(), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// syncBuffer is a bytes.Buffer safe for concurrent writers, used as log output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Records decodes every line of the buffer as a JSON object.
func (b *syncBuffer) Records(t *testing.T) []map[string]any {
	t.Helper()
	var records []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(b.String()))
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &rec), "invalid JSON line %q", scanner.Text())
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

// RecordsWithLevel returns the decoded records of the given level.
func (b *syncBuffer) RecordsWithLevel(t *testing.T, level string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, rec := range b.Records(t) {
		if rec[zerolog.LevelFieldName] == level {
			out = append(out, rec)
		}
	}
	return out
}

//
// Helper functions
//

// newTestRegistry creates a registry logging JSON to the returned buffer.
func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	opts = append([]Option{WithLogger(zerolog.New(buf))}, opts...)
	r, err := NewRegistry(opts...)
	require.NoError(t, err, "error creating registry")
	return r, buf
}

// newTestEvent produces a single event from a throwaway registry.
func newTestEvent(t *testing.T, host, method string, operation any) TimerEvent {
	t.Helper()
	rec := &recordingHandler{}
	r, _ := newTestRegistry(t, WithHandlers(rec), WithClock(newStepClock(time.Millisecond).Now))
	timer, err := r.Start(host, method, operation)
	require.NoError(t, err)
	timer.End()
	events := rec.Events()
	require.Len(t, events, 1)
	return events[0]
}

// upgrader is used to upgrade the connection to a WebSocket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// In tests, allow any origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSinkServer creates a server that forwards every message received on "/ws" to the returned
// channel. The channel is closed when the client closes the connection.
func wsSinkServer() (*httptest.Server, <-chan []byte) {
	msgs := make(chan []byte, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Could not open websocket connection", http.StatusBadRequest)
			return
		}
		defer conn.Close()
		defer close(msgs)

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- message
		}
	}))
	return server, msgs
}
