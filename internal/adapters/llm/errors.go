package llm

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
)

// OpenAIError maps go-openai failures onto errs.ProviderError so the retry
// loop can see the status code.
func OpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &errs.ProviderError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &errs.ProviderError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &errs.ProviderError{Provider: "openai", Err: err}
}

// AnthropicError maps SDK errors, honoring the Retry-After header.
func AnthropicError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		perr := &errs.ProviderError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
		if apiErr.Response != nil {
			perr.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return perr
	}
	return &errs.ProviderError{Provider: "anthropic", Err: err}
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+)(\d+(?:\.\d+)?)\s*s`)

var statusRegex = regexp.MustCompile(`Error (\d{3})`)

// GeminiError classifies genai failures from their message, which carries
// the HTTP code and the RESOURCE_EXHAUSTED status.
func GeminiError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	perr := &errs.ProviderError{Provider: "gemini", Err: err}

	if m := statusRegex.FindStringSubmatch(msg); len(m) == 2 {
		perr.StatusCode, _ = strconv.Atoi(m[1])
	}
	switch {
	case strings.Contains(msg, "RESOURCE_EXHAUSTED"), strings.Contains(msg, "quota"):
		perr.StatusCode = http.StatusTooManyRequests
	case perr.StatusCode == 0 && strings.Contains(msg, "UNAVAILABLE"):
		perr.StatusCode = http.StatusServiceUnavailable
	}

	if m := retryDelayRegex.FindStringSubmatch(msg); len(m) == 2 {
		if seconds, parseErr := strconv.ParseFloat(m[1], 64); parseErr == nil {
			perr.RetryAfter = time.Duration(seconds * float64(time.Second))
		}
	}
	return perr
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
