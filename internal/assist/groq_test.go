package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "sarabot/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func chatReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestInterpretReminderIntent(t *testing.T) {
	c := newTestClient(t, chatReply(
		`{"is_reminder": true, "description": "call mom", "date": "tomorrow", "time": "18:00", "urgency": "medium"}`))

	intent, err := c.Interpret(context.Background(), "remind me to call mom tomorrow at 6pm", nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if !intent.IsReminder || intent.Description != "call mom" || intent.Date != "tomorrow" || intent.Time != "18:00" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestInterpretChatIntent(t *testing.T) {
	c := newTestClient(t, chatReply(`{"is_reminder": false, "response": "Hello! How can I help?"}`))

	intent, err := c.Interpret(context.Background(), "hi there", nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if intent.IsReminder || intent.Response != "Hello! How can I help?" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestInterpretStripsCodeFence(t *testing.T) {
	c := newTestClient(t, chatReply("```json\n{\"is_reminder\": false, \"response\": \"ok\"}\n```"))

	intent, err := c.Interpret(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if intent.Response != "ok" {
		t.Fatalf("code fence not stripped: %+v", intent)
	}
}

func TestInterpretMalformedJSONDegradesToChat(t *testing.T) {
	c := newTestClient(t, chatReply("Sure, I'll remind you!"))

	intent, err := c.Interpret(context.Background(), "remind me", nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if intent.IsReminder || intent.Response != "Sure, I'll remind you!" {
		t.Fatalf("expected chat fallback, got %+v", intent)
	}
}

func TestInterpretSendsHistoryAndAuth(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		chatReply(`{"is_reminder": false, "response": "hi"}`)(w, r)
	}))

	history := []HistoryEntry{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	if _, err := c.Interpret(context.Background(), "and now?", history); err != nil {
		t.Fatalf("interpret: %v", err)
	}

	if auth != "Bearer test-key" {
		t.Fatalf("missing auth header: %q", auth)
	}
	// system + 2 history + current message
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[2].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", got.Messages)
	}
	if got.Messages[3].Content != "and now?" {
		t.Fatalf("current message last, got %q", got.Messages[3].Content)
	}
}

func TestInterpretHTTPError(t *testing.T) {
	// 400 is not retried by the SDK, so the test fails fast.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))

	_, err := c.Interpret(context.Background(), "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected http 400 error, got %v", err)
	}
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") == "" {
			http.Error(w, "missing model", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"text": " transcribed %s "}`, hdr.Filename)
	}))

	text, err := c.Transcribe(context.Background(), []byte("fake-ogg-bytes"), "note.ogg")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "transcribed note.ogg" {
		t.Fatalf("unexpected transcription: %q", text)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server should not be reached")
	}))
	if _, err := c.Transcribe(context.Background(), nil, "x.ogg"); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, logx.Nop()); err == nil {
		t.Fatalf("expected error without api key")
	}
}
