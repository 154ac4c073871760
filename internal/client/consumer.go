package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manonkim2/ai-character-chat/internal/ai"
)

// StreamError classifies one failed attempt against the relay endpoint.
// Retryable mirrors the controller's policy: 5xx and 429 responses, network
// failures, wrong framing and in-band error frames may be retried; other
// HTTP statuses may not.
type StreamError struct {
	Status    int // HTTP status when a response was received, 0 otherwise
	Retryable bool
	Message   string
	Err       error
}

func (e *StreamError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("stream failed (status %d): %s", e.Status, e.Message)
	case e.Message != "":
		return "stream failed: " + e.Message
	case e.Err != nil:
		return "stream failed: " + e.Err.Error()
	default:
		return fmt.Sprintf("stream failed (status %d)", e.Status)
	}
}

func (e *StreamError) Unwrap() error { return e.Err }

// Handler receives stream lifecycle callbacks. OnStart fires once the stream
// framing is validated and an assistant turn is open; OnDelta fires for each
// extracted text fragment, in wire order.
type Handler struct {
	OnStart func()
	OnDelta func(text string)
}

// Streamer is the protocol boundary the retry controller drives. Consumer is
// the real implementation; tests substitute fakes.
type Streamer interface {
	Stream(ctx context.Context, payload []ai.Message, h Handler) error
}

// Consumer opens one streaming request per attempt against the relay
// endpoint and reconstructs assistant output incrementally.
type Consumer struct {
	BaseURL     string
	CharacterID string
	System      string
	Client      *http.Client
}

func NewConsumer(baseURL, characterID, system string) *Consumer {
	return &Consumer{
		BaseURL:     baseURL,
		CharacterID: characterID,
		System:      system,
		Client:      &http.Client{Timeout: 0 * time.Second},
	}
}

type relayRequest struct {
	CharacterID string       `json:"characterId,omitempty"`
	System      string       `json:"system,omitempty"`
	Messages    []ai.Message `json:"messages"`
}

func statusRetryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Stream performs one attempt. It returns nil on a clean completion,
// ctx.Err() on cancellation, and *StreamError otherwise.
func (c *Consumer) Stream(ctx context.Context, payload []ai.Message, h Handler) error {
	body, err := json.Marshal(relayRequest{
		CharacterID: c.CharacterID,
		System:      c.System,
		Messages:    payload,
	})
	if err != nil {
		return &StreamError{Retryable: false, Message: "encode request", Err: err}
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &StreamError{Retryable: false, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StreamError{Retryable: true, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &StreamError{
			Status:    resp.StatusCode,
			Retryable: statusRetryable(resp.StatusCode),
			Message:   strings.TrimSpace(string(b)),
		}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		return &StreamError{Status: resp.StatusCode, Retryable: true, Message: "unexpected content type " + ct}
	}

	if h.OnStart != nil {
		h.OnStart()
	}

	sc := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)

	done := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		frame := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if frame == "" {
			continue
		}
		if frame == "[DONE]" {
			// the turn has settled; keep draining so the connection
			// closes cleanly
			done = true
			continue
		}
		if done {
			continue
		}

		var evt any
		if err := json.Unmarshal([]byte(frame), &evt); err != nil {
			return &StreamError{Retryable: true, Message: "malformed stream frame", Err: err}
		}

		// the error check runs before text extraction: a frame that is
		// both error-shaped and text-bearing counts as an error
		if msg, isErr := errorFrame(evt); isErr {
			return &StreamError{Retryable: true, Message: msg}
		}

		if text := ExtractText(evt); text != "" && h.OnDelta != nil {
			h.OnDelta(text)
		}
	}

	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StreamError{Retryable: true, Message: "stream read failed", Err: err}
	}
	return nil
}

// errorFrame detects the in-band error shape: {"type":"error",...} or any
// payload carrying a non-null "error" member.
func errorFrame(evt any) (string, bool) {
	m, ok := evt.(map[string]any)
	if !ok {
		return "", false
	}
	isErr := false
	if t, _ := m["type"].(string); t == "error" {
		isErr = true
	}
	if e, present := m["error"]; present && e != nil {
		isErr = true
		if em, ok := e.(map[string]any); ok {
			if s, ok := em["message"].(string); ok && s != "" {
				return s, true
			}
		}
	}
	if !isErr {
		return "", false
	}
	if s, ok := m["message"].(string); ok && s != "" {
		return s, true
	}
	return "upstream error", true
}
