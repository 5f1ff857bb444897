package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/format"
)

// FormatHandler renders single attempt results.
type FormatHandler struct{}

// NewFormatHandler creates a new format handler.
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

type formatResponse struct {
	Value     int    `json:"value"`
	EventID   string `json:"event_id"`
	Average   bool   `json:"average"`
	Formatted string `json:"formatted"`
}

// HandleFormat handles GET /format?value=&event_id=&average= requests.
func (h *FormatHandler) HandleFormat(w http.ResponseWriter, r *http.Request) {
	const op = "api.format"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	value, err := strconv.Atoi(q.Get("value"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("value must be an integer")))
		return
	}
	eventID := strings.TrimSpace(q.Get("event_id"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing event_id")))
		return
	}
	var average bool
	if s := q.Get("average"); s != "" {
		if average, err = strconv.ParseBool(s); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("average must be a boolean")))
			return
		}
	}

	writeJSON(w, http.StatusOK, formatResponse{
		Value:     value,
		EventID:   eventID,
		Average:   average,
		Formatted: format.AttemptResult(attempt.Result(value), eventID, average),
	})
}
