// Package http exposes the QA pipeline as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Answerer runs a full map-reduce round.
type Answerer interface {
	Answer(ctx context.Context, question string) (*entities.Answer, error)
}

// Counter reports the index size for health checks.
type Counter interface {
	Count() int
}

// Server is the HTTP server for the QA API.
type Server struct {
	qa     Answerer
	index  Counter
	addr   string
	logger *log.Logger
}

// NewServer creates a new HTTP server.
func NewServer(qa Answerer, index Counter, addr string, logger *log.Logger) *Server {
	return &Server{
		qa:     qa,
		index:  index,
		addr:   addr,
		logger: logging.OrNop(logger),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware, corsMiddleware)

	// routes stay on the root router so a wrong method is a 405, not a 404
	r.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is cancelled, then shuts down within 5s.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// a round is k+1 model calls
		WriteTimeout: 300 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("http server starting")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("http shutdown")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}

type queryRequest struct {
	Question string `json:"question"`
}

type sourceResponse struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type queryResponse struct {
	Answer  string           `json:"answer"`
	Sources []sourceResponse `json:"sources"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleQuery answers one question.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	answer, err := s.qa.Answer(r.Context(), req.Question)
	if err != nil {
		status, msg := statusFor(err)
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Int("status", status).Msg("query failed")
		s.writeError(w, r, status, msg)
		return
	}

	resp := queryResponse{Answer: answer.Text, Sources: make([]sourceResponse, 0, len(answer.Sources))}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{Source: src.Chunk.Source, Score: src.Score})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	chunks := 0
	if s.index != nil {
		chunks = s.index.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chunks": chunks})
}

func statusFor(err error) (int, string) {
	var invalid *errs.InvalidInputError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, invalid.Error()
	}
	var gen *errs.GenerationError
	if errors.As(err, &gen) {
		return http.StatusBadGateway, "language model request failed"
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
