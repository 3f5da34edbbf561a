package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-context-relay/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.CompletionConfig{
		APIKey:      "test-key",
		BaseURL:     url + "/",
		Model:       "test-model",
		MaxTokens:   4000,
		Temperature: 0.2,
	}, nil)
}

func TestComplete_SendsPromptAndParams(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  Paris.\n"}},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Paris." {
		t.Errorf("completion = %q", out)
	}
	if got.Model != "test-model" || got.MaxTokens != 4000 || got.Temperature != 0.2 {
		t.Errorf("request params = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "What is the capital of France?" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), "hi")
	if err != nil || out != "" {
		t.Fatalf("Complete = %q, %v", out, err)
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "hi")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests || len(se.Body) != 400 {
		t.Fatalf("status error = code %d, body len %d", se.Code, len(se.Body))
	}
}

func TestComplete_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Complete(context.Background(), "hi"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestComplete_NoAPIKey(t *testing.T) {
	c := NewClient(config.CompletionConfig{BaseURL: "http://unused"}, nil)
	if _, err := c.Complete(context.Background(), "hi"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestComplete_HonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := newTestClient(server.URL).Complete(ctx, "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
