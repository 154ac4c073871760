package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/config"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Character{}, &chat.Message{}, &chat.SaveJob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewRouter(db, config.Config{}, nil, nil)
}

func doReq(t *testing.T, r *gin.Engine, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, w.Body.String())
	}
	return env.Data
}

func TestRouter_Ping(t *testing.T) {
	r := newTestRouter(t)
	w := doReq(t, r, http.MethodGet, "/ping", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestRouter_IdentityRequired(t *testing.T) {
	r := newTestRouter(t)

	w := doReq(t, r, http.MethodGet, "/characters", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}

	// the relay stays open: anonymous chat hits the echo fallback
	w = doReq(t, r, http.MethodPost, "/api/chat", "", `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("relay must not require identity, got %d", w.Code)
	}
}

func TestRouter_CharacterCRUD(t *testing.T) {
	r := newTestRouter(t)

	w := doReq(t, r, http.MethodPost, "/characters", "u1", `{"name":"상담가2","prompt":"친절하게"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	created, _ := dataField(t, w)["character"].(map[string]any)
	id, _ := created["id"].(string)
	if len(id) != 26 {
		t.Fatalf("expected ULID id, got %q", id)
	}

	w = doReq(t, r, http.MethodGet, "/characters", "u1", "")
	chars, _ := dataField(t, w)["characters"].([]any)
	if len(chars) != 4 {
		t.Fatalf("expected 3 defaults + 1 custom, got %d", len(chars))
	}

	// deleting a default is rejected
	w = doReq(t, r, http.MethodDelete, "/characters/default-1", "u1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("default delete: expected 400, got %d", w.Code)
	}

	// another user cannot delete it
	w = doReq(t, r, http.MethodDelete, "/characters/"+id, "u2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-user delete: expected 404, got %d", w.Code)
	}

	w = doReq(t, r, http.MethodDelete, "/characters/"+id, "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
}

func TestRouter_ConversationRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	body := `{"messages":[
		{"role":"user","content":"안녕","ts":1756700000000},
		{"role":"assistant","content":"에코: 안녕","ts":1756700001000}
	]}`
	w := doReq(t, r, http.MethodPut, "/characters/default-1/messages", "u1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doReq(t, r, http.MethodGet, "/characters/default-1/messages", "u1", "")
	msgs, _ := dataField(t, w)["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	// identity scopes the history
	w = doReq(t, r, http.MethodGet, "/characters/default-1/messages", "u2", "")
	if msgs, _ := dataField(t, w)["messages"].([]any); len(msgs) != 0 {
		t.Fatalf("u2 must not see u1's history, got %d", len(msgs))
	}

	w = doReq(t, r, http.MethodDelete, "/characters/default-1/messages", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = doReq(t, r, http.MethodGet, "/characters/default-1/messages", "u1", "")
	if msgs, _ := dataField(t, w)["messages"].([]any); len(msgs) != 0 {
		t.Fatalf("history must be empty after delete, got %d", len(msgs))
	}
}

func TestRouter_SaveConversationUnknownCharacter(t *testing.T) {
	r := newTestRouter(t)

	w := doReq(t, r, http.MethodPut, "/characters/no-such-id/messages", "u1",
		`{"messages":[{"role":"user","content":"x"}]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouter_AsyncSaveUnavailableWithoutQueue(t *testing.T) {
	r := newTestRouter(t)

	w := doReq(t, r, http.MethodPost, "/characters/default-1/save-jobs", "u1",
		`{"messages":[{"role":"user","content":"x"}]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", w.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t)
	w := doReq(t, r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = doReq(t, r, http.MethodPatch, "/ping", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
