package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/manonkim2/ai-character-chat/internal/ai"
	"github.com/manonkim2/ai-character-chat/internal/client"
)

type fakeStreamer struct {
	body string
	err  error
	last []ai.Message
}

func (f *fakeStreamer) StreamMessages(ctx context.Context, messages []ai.Message, system string) (io.ReadCloser, error) {
	_ = ctx
	_ = system
	f.last = append([]ai.Message(nil), messages...)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func newRelayRouter(upstream ai.Streamer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &Handler{Upstream: upstream}
	r.POST("/api/chat", h.ChatStream)
	return r
}

func postChat(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatStream_EchoFallback(t *testing.T) {
	r := newRelayRouter(nil)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hello"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data: {"output_text":"에코: hello"}`) {
		t.Fatalf("echo delta missing from body:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("body must end with the DONE sentinel:\n%s", body)
	}
}

func TestChatStream_BadJSON(t *testing.T) {
	r := newRelayRouter(nil)

	w := postChat(t, r, `{"messages":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "잘못된 요청 본문") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestChatStream_InputTooLong(t *testing.T) {
	up := &fakeStreamer{}
	r := newRelayRouter(up)

	long := strings.Repeat("가", 201)
	w := postChat(t, r, `{"messages":[{"role":"user","content":"`+long+`"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if up.last != nil {
		t.Fatalf("validation failure must not reach the upstream")
	}

	// exactly 200 runes is allowed
	okLen := strings.Repeat("가", 200)
	w = postChat(t, r, `{"messages":[{"role":"user","content":"`+okLen+`"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for 200-rune input, got %d", w.Code)
	}
}

func TestChatStream_UpstreamEstablishFailure(t *testing.T) {
	up := &fakeStreamer{err: &ai.UpstreamError{Status: 529, Body: "overloaded"}}
	r := newRelayRouter(up)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("upstream failure must stay HTTP 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data: {"output_text":"overloaded"}`) {
		t.Fatalf("fallback message missing:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("fallback stream must terminate with DONE:\n%s", body)
	}
}

func TestChatStream_UpstreamEstablishFailureDefaultMessage(t *testing.T) {
	up := &fakeStreamer{err: io.ErrUnexpectedEOF}
	r := newRelayRouter(up)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "AI 응답 오류가 발생했습니다.") {
		t.Fatalf("default fallback message missing:\n%s", w.Body.String())
	}
}

func TestChatStream_UpstreamPipe(t *testing.T) {
	up := &fakeStreamer{body: "event: content_block_delta\n" +
		"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"안\"}}\n" +
		"event: content_block_delta\n" +
		"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"녕\"}}\n" +
		"event: message_stop\n" +
		"data: {\"type\":\"message_stop\"}\n"}
	r := newRelayRouter(up)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hi"}],"system":"상담가"}`)
	body := w.Body.String()

	want := "data: {\"output_text\":\"안\"}\n\n" +
		"data: {\"output_text\":\"녕\"}\n\n" +
		"data: [DONE]\n\n"
	if body != want {
		t.Fatalf("unexpected stream body:\n%q\nwant:\n%q", body, want)
	}
	if len(up.last) != 1 || up.last[0].Content != "hi" {
		t.Fatalf("upstream did not receive the payload: %+v", up.last)
	}
}

func TestChatStream_UpstreamErrorEventForwarded(t *testing.T) {
	up := &fakeStreamer{body: "event: error\n" +
		"data: {\"type\":\"error\",\"error\":{\"message\":\"Overloaded\"}}\n"}
	r := newRelayRouter(up)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hi"}]}`)
	body := w.Body.String()
	if !strings.Contains(body, `"type":"error"`) || !strings.Contains(body, "Overloaded") {
		t.Fatalf("error frame missing:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream must still terminate:\n%s", body)
	}
}

// End-to-end: the echo relay consumed by the real client stack.
func TestChatStream_EchoEndToEndWithClient(t *testing.T) {
	srv := httptest.NewServer(newRelayRouter(nil))
	defer srv.Close()

	consumer := client.NewConsumer(srv.URL, "default-1", "")
	ctrl := client.NewController(consumer, client.NewTranscript(nil), "default-1")

	if err := ctrl.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := ctrl.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant, got %d messages", len(msgs))
	}
	if msgs[1].Role != client.RoleAssistant || msgs[1].Content != "에코: hello" {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	if ctrl.State() != client.StateSettled {
		t.Fatalf("expected settled state, got %v", ctrl.State())
	}
}
