package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	modelchat "github.com/zhouzirui/lumen/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/lumen/backend/internal/service/chat"
)

func setupRouter() (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(chatservice.Options{SystemPrompt: "sys"})
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func TestCreateSession(t *testing.T) {
	r, chatSvc := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session modelchat.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected session id")
	}
	if _, err := chatSvc.GetSession(req.Context(), session.ID); err != nil {
		t.Fatalf("expected session to be registered: %v", err)
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session/missing/messages", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestTranscriptReturnsHistory(t *testing.T) {
	r, chatSvc := setupRouter()
	conv := chatSvc.Default()
	conv.Begin("hello")
	conv.Finalize("hi there")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session/default/messages", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Messages []modelchat.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[1].Content != "hi there" {
		t.Fatalf("expected stored exchange, got %+v", body.Messages)
	}
}

func TestClearConversationDefault(t *testing.T) {
	r, chatSvc := setupRouter()
	conv := chatSvc.Default()
	conv.Begin("hello")
	conv.Finalize("hi")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/conversation", nil))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if got := len(conv.Transcript()); got != 0 {
		t.Fatalf("expected empty history, got %d messages", got)
	}
}

func TestClearConversationUnknownSession(t *testing.T) {
	r, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/conversation?sessionId=nope", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	r, chatSvc := setupRouter()
	session, err := chatSvc.CreateSession(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/session/"+session.ID, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session/"+session.ID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}
