package ai

import (
	"context"
	"fmt"
	"io"
)

// Message is one role/content pair sent to the upstream generation API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventKind tags the normalized event union carried between the upstream
// adapter and the relay endpoint.
type EventKind int

const (
	EventTextDelta EventKind = iota
	EventDone
	EventError
)

// Event is one normalized stream event. Text holds the delta text for
// EventTextDelta and the error message for EventError.
type Event struct {
	Kind EventKind
	Text string
}

// Streamer is the upstream boundary used by the relay endpoint. The returned
// body carries the provider's native event-stream framing; DecodeEvents
// translates it into Events.
type Streamer interface {
	StreamMessages(ctx context.Context, messages []Message, system string) (io.ReadCloser, error)
}

// UpstreamError reports a call that failed to establish: the provider
// answered non-2xx or with no usable body.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}
