package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/manonkim2/ai-character-chat/internal/ai"
)

// State of the controller's current (or most recent) turn.
type State int

const (
	StateIdle State = iota
	StateSending
	StateSettled
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

const (
	// DefaultRetryMax is the total attempt ceiling per turn.
	DefaultRetryMax = 3
	// DefaultBackoffBase doubles per attempt: 500ms, 1s, 2s.
	DefaultBackoffBase = 500 * time.Millisecond
	// MaxInputRunes bounds one user turn; enforced again server-side.
	MaxInputRunes = 200
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds 200 characters")
	ErrBusy           = errors.New("a send is already in flight")
)

// Controller runs the per-turn state machine: Idle -> Sending(attempt 1..N)
// -> Settled | Failed | Cancelled. It owns the transcript mutations for a
// turn: the open assistant draft is appended on stream start, fed by deltas,
// removed when an attempt ends abnormally, and kept only on settle. At most
// one sending cycle is active; starting another cancels the active one
// first.
type Controller struct {
	transcript  *Transcript
	streamer    Streamer
	characterID string

	RetryMax    int
	BackoffBase time.Duration

	mu      sync.Mutex
	state   State
	loading bool
	cancel  context.CancelFunc

	runMu sync.Mutex // serializes sending cycles
}

func NewController(streamer Streamer, transcript *Transcript, characterID string) *Controller {
	if transcript == nil {
		transcript = NewTranscript(nil)
	}
	return &Controller{
		transcript:  transcript,
		streamer:    streamer,
		characterID: characterID,
		RetryMax:    DefaultRetryMax,
		BackoffBase: DefaultBackoffBase,
		state:       StateIdle,
	}
}

func (c *Controller) Transcript() *Transcript { return c.transcript }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Send validates text, appends the user message and runs a sending cycle to
// completion. It blocks until the turn settles, fails or is cancelled.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxInputRunes {
		return ErrMessageTooLong
	}

	user := newMessage(RoleUser, text, c.characterID)
	c.transcript.Append(user)
	return c.streamFrom(ctx, c.transcript.Payload(), user.ID)
}

// Cancel aborts the in-flight attempt or backoff wait, if any. Calling it
// with no turn in flight is a no-op. Cancellation never marks the
// originating message failed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ResendAtIndex forks the conversation from the user message at index:
// everything after it (including any prior assistant reply) is discarded,
// its failed flag is cleared, and a new sending cycle starts from the
// remaining prefix.
func (c *Controller) ResendAtIndex(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	msg, ok := c.transcript.At(index)
	if !ok || msg.Role != RoleUser {
		return fmt.Errorf("index %d is not a user message", index)
	}

	c.transcript.TruncateTo(index)
	c.transcript.SetFailed(msg.ID, false)
	return c.streamFrom(ctx, c.transcript.Payload(), msg.ID)
}

// ResendLast resends from the most recent user message.
func (c *Controller) ResendLast(ctx context.Context) error {
	idx := c.transcript.LastUserIndex()
	if idx < 0 {
		return errors.New("no user message to resend")
	}
	return c.ResendAtIndex(ctx, idx)
}

func (c *Controller) streamFrom(ctx context.Context, payload []ai.Message, initiatorID string) error {
	// cancel-before-start: an active cycle must stop before a new one
	// touches the transcript
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.runMu.Lock()
	defer c.runMu.Unlock()

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.state = StateSending
	c.loading = true
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.RetryMax; attempt++ {
		var assistantID string
		h := Handler{
			OnStart: func() {
				m := newMessage(RoleAssistant, "", c.characterID)
				assistantID = m.ID
				c.transcript.Append(m)
			},
			OnDelta: func(text string) {
				if assistantID != "" {
					c.transcript.AppendToLast(assistantID, text)
				}
			},
		}

		err := c.streamer.Stream(attemptCtx, payload, h)
		if err == nil {
			c.settle(StateSettled)
			return nil
		}

		// never leave a partial assistant draft behind
		if assistantID != "" {
			c.transcript.RemoveLastAssistant(assistantID)
		}

		if errors.Is(err, context.Canceled) {
			c.settle(StateCancelled)
			return nil
		}

		lastErr = err
		var se *StreamError
		retryable := errors.As(err, &se) && se.Retryable
		if !retryable || attempt == c.RetryMax {
			c.transcript.SetFailed(initiatorID, true)
			c.settle(StateFailed)
			return lastErr
		}

		if !backoff(attemptCtx, c.BackoffBase<<(attempt-1)) {
			c.settle(StateCancelled)
			return nil
		}
	}
	return lastErr
}

func (c *Controller) settle(s State) {
	c.mu.Lock()
	c.state = s
	c.loading = false
	c.cancel = nil
	c.mu.Unlock()
}

// backoff waits d; returns false when ctx is cancelled first.
func backoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
