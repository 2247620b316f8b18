package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// SSEEmitter writes events to an http.ResponseWriter as a
// text/event-stream body, flushing after every event.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *zap.Logger
}

// NewSSE prepares the response headers and returns an emitter. The
// response is committed; callers must not write a status code afterwards.
func NewSSE(w http.ResponseWriter, logger *zap.Logger) *SSEEmitter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	return &SSEEmitter{w: w, flusher: flusher, logger: logger}
}

// Emit writes one event frame. Marshal failures drop the event with a log
// line rather than corrupting the stream.
func (e *SSEEmitter) Emit(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		e.logger.Warn("sse marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload)
	if e.flusher != nil {
		e.flusher.Flush()
	}
}

// CollectedEvent is one event captured by a Collector.
type CollectedEvent struct {
	Event string
	Data  any
}

// Collector buffers events in order. Used by the chat gateways (which
// reply once per turn, not as a stream) and by tests.
type Collector struct {
	Events []CollectedEvent
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit appends the event.
func (c *Collector) Emit(event string, data any) {
	c.Events = append(c.Events, CollectedEvent{Event: event, Data: data})
}

// Turns returns the turn payloads in emission order.
func (c *Collector) Turns() []Turn {
	var turns []Turn
	for _, ev := range c.Events {
		if ev.Event == EventTurn {
			if td, ok := ev.Data.(TurnData); ok {
				turns = append(turns, td.Turn)
			}
		}
	}
	return turns
}

// Err returns the error copy when the round failed, or empty.
func (c *Collector) Err() string {
	for _, ev := range c.Events {
		if ev.Event == EventError {
			if ed, ok := ev.Data.(ErrorData); ok {
				return ed.Message
			}
		}
	}
	return ""
}
