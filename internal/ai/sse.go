package ai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Upstream event names that carry meaning for the relay.
const (
	eventContentBlockDelta = "content_block_delta"
	eventMessageStop       = "message_stop"
	eventErrorType         = "error"
)

type deltaPayload struct {
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeEvents translates the provider's `event:`/`data:` line-pair framing
// into the normalized event union. The most recent `event:` name applies to
// subsequent `data:` lines until it changes. Malformed payloads are dropped
// without aborting the stream, and a terminal EventDone is always emitted,
// even when the upstream closes without an explicit stop marker.
func DecodeEvents(r io.Reader) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		sc := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		current := ""
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if strings.HasPrefix(line, ":") { // comment line
				continue
			}
			if strings.HasPrefix(line, "event:") {
				current = strings.TrimSpace(line[len("event:"):])
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(line[len("data:"):])
			// the provider doesn't use [DONE], but guard anyway
			if payload == "" || payload == "[DONE]" {
				continue
			}

			switch current {
			case eventContentBlockDelta:
				var d deltaPayload
				if err := json.Unmarshal([]byte(payload), &d); err != nil {
					continue
				}
				if d.Delta.Type == "text_delta" && d.Delta.Text != "" {
					out <- Event{Kind: EventTextDelta, Text: d.Delta.Text}
				}
			case eventMessageStop:
				out <- Event{Kind: EventDone}
				return
			case eventErrorType:
				var e errorPayload
				if err := json.Unmarshal([]byte(payload), &e); err != nil {
					continue
				}
				out <- Event{Kind: EventError, Text: e.Error.Message}
			}
		}

		out <- Event{Kind: EventDone}
	}()

	return out
}
