package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

var (
	_ ports.LanguageModel = (*OpenAI)(nil)
	_ ports.LanguageModel = (*Anthropic)(nil)
	_ ports.LanguageModel = (*Gemini)(nil)
	_ ports.LanguageModel = (*Ollama)(nil)
)

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body["model"])
		assert.InDelta(t, 0.2, body["temperature"], 1e-6)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Aim tracks experiments."},"finish_reason":"stop"}],"usage":{"completion_tokens":3}}`)
	}))
	defer server.Close()

	g := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL+"/v1"))
	out, err := g.Generate(context.Background(), "What is Aim?", ports.GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Aim tracks experiments.", out)
	assert.Equal(t, "openai/gpt-3.5-turbo", g.Name())
}

func TestOpenAI_EmptyReplyIsAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	out, err := NewOpenAI(WithAPIKey("k"), WithBaseURL(server.URL+"/v1")).
		Generate(context.Background(), "q", ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAI_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[]}`)
	}))
	defer server.Close()

	_, err := NewOpenAI(WithAPIKey("k"), WithBaseURL(server.URL+"/v1")).
		Generate(context.Background(), "q", ports.GenerateOptions{})
	assert.Error(t, err)
}

type staticRetriever []entities.ScoredChunk

func (r staticRetriever) Retrieve(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	return r, nil
}

// An irrelevant chunk answered with an empty message must not fail the round.
func TestOpenAI_EmptyMapReplyKeepsRound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		prompt := body.Messages[len(body.Messages)-1].Content

		content := "Aim tracks experiments."
		switch {
		case strings.Contains(prompt, "Unrelated changelog"):
			content = ""
		case strings.Contains(prompt, "Summaries:"):
			content = "Combined: Aim tracks experiments."
		}
		w.Header().Set("Content-Type", "application/json")
		reply, _ := json.Marshal(content)
		fmt.Fprintf(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, reply)
	}))
	defer server.Close()

	hits := staticRetriever{
		{Chunk: entities.Chunk{Source: "a.md", Text: "Aim is an experiment tracker."}, Score: 0.9},
		{Chunk: entities.Chunk{Source: "changes.md", Text: "Unrelated changelog"}, Score: 0.1},
	}
	pipeline := usecases.NewQAPipeline(hits, NewOpenAI(WithAPIKey("k"), WithBaseURL(server.URL+"/v1")), usecases.DefaultQAConfig(), nil)

	out, err := pipeline.Run(context.Background(), "What is Aim?")
	require.NoError(t, err)
	assert.Equal(t, "Combined: Aim tracks experiments.", out)
}

func TestOpenAI_StatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"test_error"}}`)
			}))
			defer server.Close()

			_, err := NewOpenAI(WithAPIKey("k"), WithBaseURL(server.URL+"/v1")).
				Generate(context.Background(), "q", ports.GenerateOptions{})

			var perr *errs.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.transient, errs.IsTransient(err))
		})
	}
}

func TestAnthropic_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
		assert.EqualValues(t, 1024, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Aim "},{"type":"text","text":"tracks experiments."}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":3}}`)
	}))
	defer server.Close()

	g := NewAnthropic(WithAPIKey("test-key"), WithBaseURL(server.URL))
	out, err := g.Generate(context.Background(), "What is Aim?", ports.GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Aim tracks experiments.", out)
}

func TestAnthropic_EmptyReplyIsAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":""}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":0}}`)
	}))
	defer server.Close()

	out, err := NewAnthropic(WithAPIKey("k"), WithBaseURL(server.URL)).
		Generate(context.Background(), "q", ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnthropic_RetryAfter(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	_, err := NewAnthropic(WithAPIKey("k"), WithBaseURL(server.URL)).
		Generate(context.Background(), "q", ports.GenerateOptions{})

	var perr *errs.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, 7*time.Second, perr.RetryAfter)
	assert.Equal(t, 1, calls, "sdk retries are disabled")
}

func TestGemini_RequiresAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background())
	assert.Error(t, err)
}

func TestGemini_EmptyReplyIsAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()

	g, err := NewGemini(context.Background(), WithAPIKey("k"), WithBaseURL(server.URL))
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), "q", ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGemini_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	g, err := NewGemini(context.Background(), WithAPIKey("k"), WithBaseURL(server.URL))
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "q", ports.GenerateOptions{})
	assert.Error(t, err)
}

func TestGeminiError_Classification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		retryAfter time.Duration
	}{
		{
			name:       "resource exhausted",
			err:        errors.New("Error 429, Message: quota hit. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED, Details: []"),
			status:     http.StatusTooManyRequests,
			retryAfter: 45500 * time.Millisecond,
		},
		{
			name:   "invalid argument",
			err:    errors.New("Error 400, Message: bad prompt, Status: INVALID_ARGUMENT, Details: []"),
			status: http.StatusBadRequest,
		},
		{
			name:   "unavailable",
			err:    errors.New("Error 503, Message: overloaded, Status: UNAVAILABLE, Details: []"),
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var perr *errs.ProviderError
			require.ErrorAs(t, GeminiError(tt.err), &perr)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.retryAfter, perr.RetryAfter)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Greater(t, parseRetryAfter(time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)), 30*time.Second)
}

func TestNew_SelectsProvider(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		provider string
		name     string
	}{
		{provider: "", name: "openai/gpt-3.5-turbo"},
		{provider: "openai", name: "openai/gpt-3.5-turbo"},
		{provider: "anthropic", name: "anthropic/claude-3-5-haiku-latest"},
		{provider: "gemini", name: "gemini/gemini-2.0-flash"},
		{provider: "ollama", name: "ollama/llama3.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(ctx, Config{Provider: tt.provider, APIKey: "k"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.name, m.Name())
		})
	}

	_, err := New(ctx, Config{Provider: "palm"}, nil)
	assert.Error(t, err)
}
