// Package errs defines the error taxonomy shared by the loader, the index
// builder and the QA pipeline. Callers inspect them with errors.As.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// InvalidInputError reports a bad documentation path or an unusable question.
type InvalidInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// EmptyCorpusError means the documentation tree yielded nothing to index.
type EmptyCorpusError struct {
	Root string
}

func (e *EmptyCorpusError) Error() string {
	if e.Root == "" {
		return "no markdown documents to index"
	}
	return fmt.Sprintf("no markdown documents to index under %s", e.Root)
}

// IndexBuildError wraps a failure while loading, embedding or storing chunks.
type IndexBuildError struct {
	Stage  string // load, fit, embed or store
	Source string
	Err    error
}

func (e *IndexBuildError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("building index (%s %s): %v", e.Stage, e.Source, e.Err)
	}
	return fmt.Sprintf("building index (%s): %v", e.Stage, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// GenerationError wraps a language model failure in the map or reduce step.
type GenerationError struct {
	Stage    string
	Index    int // chunk rank for map failures, -1 otherwise
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("generation failed (%s step, chunk %d, %d attempts): %v", e.Stage, e.Index, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed (%s step, %d attempts): %v", e.Stage, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ProviderError is returned by model and embedding providers when the remote
// API answered with an error status.
type ProviderError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the status code is worth retrying.
func (e *ProviderError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500:
		return true
	}
	return false
}

// IsTransient classifies an error for the retry loop. Context cancellation by
// the caller is never transient; a per-call deadline is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Transient() {
			return true
		}
		if perr.StatusCode > 0 {
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// RetryAfter returns the provider-suggested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.RetryAfter
	}
	return 0
}
