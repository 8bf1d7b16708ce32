package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// Ollama talks to a local Ollama server's generate endpoint.
type Ollama struct {
	options Options
	client  *http.Client
}

func NewOllama(opts ...Option) *Ollama {
	options := NewOptions(opts...)
	options.Model = options.modelOr(defaultOllamaModel)
	if options.BaseURL == "" {
		options.BaseURL = defaultOllamaURL
	}
	client := options.HTTPClient
	if client == nil {
		// local models are slow; the per-call deadline comes from the context
		client = &http.Client{Timeout: 300 * time.Second}
	}
	return &Ollama{options: options, client: client}
}

type ollamaGenerateRequest struct {
	Model   string               `json:"model"`
	Prompt  string               `json:"prompt"`
	Stream  bool                 `json:"stream"`
	Options ollamaRequestOptions `json:"options"`
}

type ollamaRequestOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (a *Ollama) Name() string { return "ollama/" + a.options.Model }

// Generate produces a completion for prompt.
func (a *Ollama) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  a.options.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaRequestOptions{
			Temperature: opts.Temperature,
			NumPredict:  a.options.maxTokens(opts.MaxTokens),
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.options.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &errs.ProviderError{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &errs.ProviderError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("generate request failed: %s", bytes.TrimSpace(body)),
		}
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return genResp.Response, nil
}
