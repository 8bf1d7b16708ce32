package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

func TestOllamaLLM_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("should not request streaming")
		}
		if req.Options.Temperature != 0.2 {
			t.Errorf("temperature not forwarded: %v", req.Options.Temperature)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Hello there!",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllama(WithBaseURL(server.URL), WithModel("test-model"))
	resp, err := adapter.Generate(context.Background(), "Hi", ports.GenerateOptions{Temperature: 0.2})

	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "Hello there!" {
		t.Errorf("unexpected response: %s", resp)
	}
	if adapter.Name() != "ollama/test-model" {
		t.Errorf("unexpected name: %s", adapter.Name())
	}
}

func TestOllamaLLM_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewOllama(WithBaseURL(server.URL)).Generate(context.Background(), "Hi", ports.GenerateOptions{})

	var perr *errs.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !errs.IsTransient(err) {
		t.Error("429 should be transient")
	}
	if perr.RetryAfter != 3*time.Second {
		t.Errorf("expected 3s retry-after, got %v", perr.RetryAfter)
	}
}

func TestOllamaLLM_BadRequestIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllama(WithBaseURL(server.URL)).Generate(context.Background(), "Hi", ports.GenerateOptions{})
	if err == nil || errs.IsTransient(err) {
		t.Errorf("404 should be a permanent error, got %v", err)
	}
}

func TestOllamaLLM_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewOllama(WithBaseURL(server.URL)).Generate(ctx, "Hi", ports.GenerateOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestOllamaLLM_Defaults(t *testing.T) {
	adapter := NewOllama()
	if adapter.options.BaseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.options.Model != "llama3.2" {
		t.Error("should default to llama3.2")
	}
}
