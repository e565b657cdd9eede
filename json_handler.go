package blocktimer

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// eventRecord is the JSON representation of a TimerEvent.
type eventRecord struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	Method        string    `json:"method"`
	Operation     any       `json:"operation"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	StartNanos    int64     `json:"start_nanos"`
	EndNanos      int64     `json:"end_nanos"`
	DurationNanos int64     `json:"duration_ns"`
}

// marshalEvent encodes event as JSON. An operation tag that cannot be encoded is replaced by
// its fmt representation.
func marshalEvent(event TimerEvent) ([]byte, error) {
	rec := eventRecord{
		ID:            event.ID().String(),
		Host:          event.Host(),
		Method:        event.Method(),
		Operation:     event.Operation(),
		Start:         event.StartTime(),
		End:           event.EndTime(),
		StartNanos:    event.StartNanos(),
		EndNanos:      event.EndNanos(),
		DurationNanos: event.DurationNanos(),
	}
	data, err := sonic.Marshal(rec)
	if err == nil {
		return data, nil
	}
	rec.Operation = fmt.Sprint(rec.Operation)
	return sonic.Marshal(rec)
}

// JSONHandler writes each event as a single line of JSON to an io.Writer.
type JSONHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONHandler creates a JSONHandler writing to w. Writes are serialized, w does not need
// to be safe for concurrent use.
func NewJSONHandler(w io.Writer) (*JSONHandler, error) {
	if w == nil {
		return nil, invalidArgument("writer is nil")
	}
	return &JSONHandler{w: w}, nil
}

// Name implements NamedHandler.
func (h *JSONHandler) Name() string { return "json" }

// OnTimerEvent implements TimerHandler.
func (h *JSONHandler) OnTimerEvent(event TimerEvent) error {
	data, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(data)
	return err
}
