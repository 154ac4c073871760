package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/manonkim2/ai-character-chat/internal/ai"
)

const maxUserInputRunes = 200

type relayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type relayRequest struct {
	CharacterID string         `json:"characterId"`
	System      string         `json:"system"`
	Messages    []relayMessage `json:"messages"`
}

// ChatStream relays a chat request to the upstream generation API and
// forwards its output as a normalized event stream. Past input validation it
// always answers 200: upstream failures are reported inside the stream so
// the client's stream parser is the single place that interprets failure.
func (h *Handler) ChatStream(c *gin.Context) {
	var req relayRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.String(http.StatusBadRequest, "잘못된 요청 본문")
		return
	}

	var last *relayMessage
	if len(req.Messages) > 0 {
		last = &req.Messages[len(req.Messages)-1]
	}
	if last != nil && last.Role == "user" && utf8.RuneCountInString(last.Content) > maxUserInputRunes {
		c.String(http.StatusBadRequest, "200자 이하만 입력 가능")
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		// can't stream
		fmt.Fprint(c.Writer, "data: {\"type\":\"error\",\"message\":\"flusher not supported\"}\n\n")
		return
	}

	writeText := func(text string) {
		b, err := json.Marshal(gin.H{"output_text": text})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}
	writeError := func(msg string) {
		b, err := json.Marshal(gin.H{"type": "error", "message": msg})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}
	writeDone := func() {
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		flusher.Flush()
	}

	// no credential configured: dev echo fallback, no upstream call
	if h.Upstream == nil {
		userText := ""
		if last != nil {
			userText = last.Content
		}
		writeText("에코: " + userText)
		writeDone()
		return
	}

	msgs := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	body, err := h.Upstream.StreamMessages(c.Request.Context(), msgs, req.System)
	if err != nil {
		// the call never established; degrade to an in-band message
		msg := "AI 응답 오류가 발생했습니다."
		var ue *ai.UpstreamError
		if errors.As(err, &ue) && strings.TrimSpace(ue.Body) != "" {
			msg = strings.TrimSpace(ue.Body)
		}
		log.Printf("relay upstream unavailable err=%v", err)
		writeText(msg)
		writeDone()
		return
	}
	defer body.Close()

	for ev := range ai.DecodeEvents(body) {
		switch ev.Kind {
		case ai.EventTextDelta:
			writeText(ev.Text)
		case ai.EventError:
			writeError(ev.Text)
		case ai.EventDone:
			writeDone()
			return
		}
	}
	// DecodeEvents guarantees a terminal done; keep the framing terminated
	// even if the channel closes unexpectedly
	writeDone()
}
