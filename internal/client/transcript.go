package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manonkim2/ai-character-chat/internal/ai"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. ID is a generated unique identity; all
// mutations address messages by ID, never by timestamp, so rapid resends
// under a coarse clock cannot collide.
type Message struct {
	ID          string
	Role        Role
	Content     string
	Timestamp   time.Time
	CharacterID string
	Failed      bool
}

func newMessage(role Role, content, characterID string) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		CharacterID: characterID,
	}
}

// Transcript owns the conversation state for one chat session. Every
// mutation goes through one of the reducer-style methods below; nothing else
// touches the slice, so a discarded attempt cannot corrupt ordering.
type Transcript struct {
	mu   sync.Mutex
	msgs []Message
}

func NewTranscript(initial []Message) *Transcript {
	return &Transcript{msgs: append([]Message(nil), initial...)}
}

// Messages returns a snapshot copy.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.msgs...)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

func (t *Transcript) At(i int) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.msgs) {
		return Message{}, false
	}
	return t.msgs[i], true
}

func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, m)
}

// AppendToLast appends delta to the content of the last message, provided it
// is the open assistant message identified by id.
func (t *Transcript) AppendToLast(id, delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return
	}
	last := &t.msgs[len(t.msgs)-1]
	if last.ID != id {
		return
	}
	last.Content += delta
}

// RemoveLastAssistant drops the last message when it is the assistant
// message identified by id. Used to discard the partial draft of an aborted
// attempt.
func (t *Transcript) RemoveLastAssistant(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return
	}
	last := t.msgs[len(t.msgs)-1]
	if last.Role == RoleAssistant && last.ID == id {
		t.msgs = t.msgs[:len(t.msgs)-1]
	}
}

func (t *Transcript) SetFailed(id string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			t.msgs[i].Failed = failed
			return
		}
	}
}

// TruncateTo keeps the prefix ending at index i inclusive.
func (t *Transcript) TruncateTo(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.msgs) {
		return
	}
	t.msgs = t.msgs[:i+1]
}

func (t *Transcript) LastUserIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// Payload projects the transcript onto the role/content pairs the relay
// endpoint accepts.
func (t *Transcript) Payload() []ai.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ai.Message, 0, len(t.msgs))
	for _, m := range t.msgs {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
