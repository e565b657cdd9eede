package blocktimer

import (
	"context"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSHandler(t *testing.T) {
	server, msgs := wsSinkServer()
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/ws"
	h, err := DialWSHandler(context.Background(), wsURL, nil, WSTimeouts{
		Handshake: time.Second,
		Write:     time.Second,
	})
	require.NoError(t, err, "failed to dial")

	r, _ := newTestRegistry(t, WithHandlers(h))
	require.NoError(t, r.Measure("TestHost", "op", "query-1", func() error { return nil }))
	assert.Zero(t, r.Stats().HandlerFaults)

	select {
	case msg := <-msgs:
		var rec map[string]any
		require.NoError(t, sonic.Unmarshal(msg, &rec))
		assert.Equal(t, "TestHost", rec["host"])
		assert.Equal(t, "op", rec["method"])
		assert.Equal(t, "query-1", rec["operation"])
	case <-time.After(time.Second):
		t.Fatal("event not received by server")
	}

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "second close must be a no-op")

	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "server must see the connection close")
	case <-time.After(time.Second):
		t.Fatal("server did not observe close")
	}

	assert.ErrorIs(t, h.OnTimerEvent(newTestEvent(t, "TestHost", "op", nil)), ErrHandlerClosed)
}

func TestWSHandler_JSONRPCNotifications(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		wantMethod string
	}{
		{name: "default method", method: "", wantMethod: DefaultJSONRPCMethod},
		{name: "custom method", method: "metrics.timer", wantMethod: "metrics.timer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, msgs := wsSinkServer()
			defer server.Close()

			wsURL := "ws" + server.URL[4:] + "/ws"
			h, err := DialWSHandler(context.Background(), wsURL, nil,
				WSTimeouts{Handshake: time.Second, Write: time.Second},
				WithJSONRPCNotifications(tc.method))
			require.NoError(t, err, "failed to dial")
			defer h.Close()

			event := newTestEvent(t, "TestHost", "op", "query-1")
			require.NoError(t, h.OnTimerEvent(event))

			select {
			case msg := <-msgs:
				var notification struct {
					JSONRPC string      `json:"jsonrpc"`
					ID      any         `json:"id"`
					Method  string      `json:"method"`
					Params  eventRecord `json:"params"`
				}
				require.NoError(t, sonic.Unmarshal(msg, &notification))
				assert.Equal(t, "2.0", notification.JSONRPC)
				assert.Nil(t, notification.ID, "notifications carry no id")
				assert.Equal(t, tc.wantMethod, notification.Method)
				assert.Equal(t, event.ID().String(), notification.Params.ID)
				assert.Equal(t, "TestHost", notification.Params.Host)
				assert.Equal(t, "query-1", notification.Params.Operation)
				assert.Equal(t, event.DurationNanos(), notification.Params.DurationNanos)
			case <-time.After(time.Second):
				t.Fatal("notification not received by server")
			}
		})
	}
}

func TestWSHandler_InvalidArguments(t *testing.T) {
	h, err := NewWSHandler(nil, WSTimeouts{})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, h)

	h, err = DialWSHandler(context.Background(), "ws://127.0.0.1:1/ws", nil, WSTimeouts{Write: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, h)
}

func TestDialWSHandler_Unreachable(t *testing.T) {
	server, _ := wsSinkServer()
	wsURL := "ws" + server.URL[4:] + "/not-ws"
	defer server.Close()

	h, err := DialWSHandler(context.Background(), wsURL, nil, WSTimeouts{Handshake: time.Second})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, h)
}
