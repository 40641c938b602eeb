package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limited", &AdapterError{Status: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &AdapterError{Status: 503}), true},
		{"bad request", &AdapterError{Status: 400}, false},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func startTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("failed to listen for httptest server: %v", err)
	}
	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func newGroqTestServer(t *testing.T, handler http.HandlerFunc) *GroqAdapter {
	t.Helper()
	server := startTestServer(t, handler)
	a, err := newGroqAdapter("test-key", option.WithBaseURL(server.URL+"/"), option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("newGroqAdapter: %v", err)
	}
	return a
}

func TestGroqAdapter_Generate(t *testing.T) {
	a := newGroqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing bearer token")
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "llama-3.3-70b-versatile" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "llama-3.3-70b-versatile",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "hi there"},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})

	resp, err := a.Generate(context.Background(), "llama-3.3-70b-versatile", "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "hi there" || resp.Adapter != "groq" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestGroqAdapter_StatusClassification(t *testing.T) {
	for _, tc := range []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	} {
		a := newGroqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		})
		_, err := a.Generate(context.Background(), "m", "p")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := IsTransient(err); got != tc.transient {
			t.Errorf("status %d: IsTransient = %v, want %v (err=%v)", tc.status, got, tc.transient, err)
		}
		var adapterErr *AdapterError
		if !errors.As(err, &adapterErr) || adapterErr.Status != tc.status {
			t.Errorf("status %d: expected AdapterError with status, got %v", tc.status, err)
		}
	}
}

func newGoogleTestServer(t *testing.T, handler http.HandlerFunc) *GoogleAdapter {
	t.Helper()
	server := startTestServer(t, handler)
	a, err := newGoogleAdapter("test-key", server.URL+"/", server.Client())
	if err != nil {
		t.Fatalf("newGoogleAdapter: %v", err)
	}
	return a
}

func TestGoogleAdapter_Generate(t *testing.T) {
	a := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "hi "}, {"text": "there"}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 3, "candidatesTokenCount": 2},
		})
	})

	resp, err := a.Generate(context.Background(), "gemini-2.0-flash", "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "hi there" || resp.Adapter != "google" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestGoogleAdapter_StatusClassification(t *testing.T) {
	for _, tc := range []struct {
		status    int
		state     string
		transient bool
	}{
		{http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", true},
		{http.StatusServiceUnavailable, "UNAVAILABLE", true},
		{http.StatusBadRequest, "INVALID_ARGUMENT", false},
		{http.StatusForbidden, "PERMISSION_DENIED", false},
	} {
		a := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": tc.status, "message": "overloaded", "status": tc.state},
			})
		})
		_, err := a.Generate(context.Background(), "gemini-2.0-flash", "p")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := IsTransient(err); got != tc.transient {
			t.Errorf("status %d: IsTransient = %v, want %v (err=%v)", tc.status, got, tc.transient, err)
		}
	}
}

func TestGoogleErrorKeepsStatus(t *testing.T) {
	err := googleError(fmt.Errorf("call: %w", genai.APIError{Code: 503, Status: "UNAVAILABLE"}))
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Status != 503 {
		t.Fatalf("googleError = %v, want AdapterError with status 503", err)
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		t.Error("original genai.APIError should stay in the chain")
	}
	if IsTransient(googleError(errors.New("dial failed"))) {
		t.Error("errors without a status should not be transient")
	}
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapterWithResponses(map[string]string{"topics": "cli, go"}, "")
	m.FailNext(&AdapterError{Status: 503})

	if _, err := m.Generate(context.Background(), "", "suggest topics"); !IsTransient(err) {
		t.Fatalf("expected queued transient error, got %v", err)
	}
	resp, err := m.Generate(context.Background(), "", "please suggest topics now")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "cli, go" || resp.Model != "mock-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if m.Calls() != 2 {
		t.Errorf("Calls = %d", m.Calls())
	}
}

func TestNewRejectsUnknownAdapter(t *testing.T) {
	if _, err := New("deepthought", "k"); err == nil {
		t.Error("expected error")
	}
	if _, err := New("groq", ""); err == nil {
		t.Error("expected missing key error")
	}
	a, err := New("mock", "")
	if err != nil || a.Name() != "mock" {
		t.Errorf("mock: %v %v", a, err)
	}
}
