// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/wcalive/internal/adapters/repository"
	service "github.com/okian/wcalive/internal/app"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/types"
)

const (
	defaultMaxLimit = 500
	defaultLimit    = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Preview(ctx context.Context, e model.Entry) (types.Evaluation, error)
	Submit(ctx context.Context, s model.Submission) (types.Evaluation, error)

	RoundResults(ctx context.Context, roundID string, limit int) ([]types.Row, error)
	Rank(ctx context.Context, roundID, personID string) (types.Row, error)
	Rounds(ctx context.Context) ([]types.Round, error)
}

// Server wires HTTP routes for the results API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	resultsHandler *ResultsHandler
	roundsHandler  *RoundsHandler
	rankHandler    *RankHandler
	formatHandler  *FormatHandler

	maxLimit int
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by GET /rounds/{round_id}/results.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.resultsHandler = NewResultsHandler(deps)
	s.roundsHandler = NewRoundsHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.formatHandler = NewFormatHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/results", MetricsMiddleware(s.resultsHandler.HandleSubmit, "results"))
	mux.HandleFunc("/results/preview", MetricsMiddleware(s.resultsHandler.HandlePreview, "preview"))
	mux.HandleFunc("/rounds", MetricsMiddleware(s.roundsHandler.HandleListRounds, "rounds"))
	mux.HandleFunc("/rounds/{round_id}/results", MetricsMiddleware(s.roundsHandler.HandleRoundResults, "round_results"))
	mux.HandleFunc("/rank/{round_id}/{person_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/format", MetricsMiddleware(s.formatHandler.HandleFormat, "format"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps errors returned by the service to responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEntry), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrFormatMismatch):
		writeError(w, http.StatusConflict, "format_mismatch", WrapKind(op, ErrConflict, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
