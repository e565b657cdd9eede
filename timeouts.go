package blocktimer

import (
	"errors"
	"time"
)

// WSTimeouts configures timeout values of the WebSocket handler.
type WSTimeouts struct {
	// Handshake is the timeout for the WebSocket handshake when dialing.
	// Maps to websocket.Dialer.HandshakeTimeout.
	// Zero uses the websocket library default (45 seconds).
	Handshake time.Duration

	// Write is the deadline for writing one event to the connection.
	// Applied before each WriteMessage call via SetWriteDeadline.
	// Zero means no write deadline, a stalled peer then blocks the timed code.
	Write time.Duration

	// Close is the deadline for sending the close frame.
	// Zero uses the default of 3 seconds.
	Close time.Duration
}

// Validate checks that the WSTimeouts configuration is valid.
func (t WSTimeouts) Validate() error {
	if t.Handshake < 0 {
		return errors.New("WSTimeouts.Handshake cannot be negative")
	}
	if t.Write < 0 {
		return errors.New("WSTimeouts.Write cannot be negative")
	}
	if t.Close < 0 {
		return errors.New("WSTimeouts.Close cannot be negative")
	}
	return nil
}

// closeTimeout returns the close frame deadline, applying the default.
func (t WSTimeouts) closeTimeout() time.Duration {
	if t.Close == 0 {
		return 3 * time.Second
	}
	return t.Close
}
