package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/wcalive/internal/app"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/types"
)

// Submission statuses.
const (
	statusAccepted             = "accepted"
	statusDuplicate            = "duplicate"
	statusConfirmationRequired = "confirmation_required"
)

// ResultsDependencies defines what the results handler needs.
type ResultsDependencies interface {
	Preview(ctx context.Context, e model.Entry) (types.Evaluation, error)
	Submit(ctx context.Context, s model.Submission) (types.Evaluation, error)
}

// ResultsHandler handles result entry.
type ResultsHandler struct {
	deps ResultsDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultsDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

type submitResponse struct {
	Status     string           `json:"status"`
	Duplicate  bool             `json:"duplicate"`
	Message    string           `json:"message,omitempty"`
	Evaluation types.Evaluation `json:"evaluation"`
}

// HandlePreview handles POST /results/preview requests.
func (h *ResultsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.preview_result"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req entryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := h.deps.Preview(r.Context(), req.toEntry())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleSubmit handles POST /results requests.
func (h *ResultsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_result"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ev, err := h.deps.Submit(r.Context(), req.toSubmission())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, submitResponse{Status: statusAccepted, Evaluation: ev})
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, submitResponse{Status: statusDuplicate, Duplicate: true, Evaluation: ev})
	case errors.Is(err, service.ErrConfirmationRequired):
		writeJSON(w, http.StatusConflict, submitResponse{
			Status:     statusConfirmationRequired,
			Message:    WrapKind(op, ErrConfirmationRequired, errors.New(ev.Warning)).Error(),
			Evaluation: ev,
		})
	default:
		writeServiceError(w, op, err)
	}
}
