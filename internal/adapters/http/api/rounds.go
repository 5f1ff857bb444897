package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/wcalive/internal/domain/types"
)

// RoundsDependencies defines the interface for round listings.
type RoundsDependencies interface {
	RoundResults(ctx context.Context, roundID string, limit int) ([]types.Row, error)
	Rounds(ctx context.Context) ([]types.Round, error)
}

// RoundsHandler handles round listings.
type RoundsHandler struct {
	deps     RoundsDependencies
	maxLimit int
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundsDependencies, maxLimit int) *RoundsHandler {
	return &RoundsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleListRounds handles GET /rounds requests.
func (h *RoundsHandler) HandleListRounds(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_rounds"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rounds, err := h.deps.Rounds(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// HandleRoundResults handles GET /rounds/{round_id}/results?limit=N requests.
// The limit defaults to 100 and may not exceed the configured maximum.
func (h *RoundsHandler) HandleRoundResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.round_results"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	roundID := strings.TrimSpace(r.PathValue("round_id"))
	if roundID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	n := min(defaultLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}

	rows, err := h.deps.RoundResults(r.Context(), roundID, n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
