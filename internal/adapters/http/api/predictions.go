package api

import (
	"context"
	"net/http"
	"strconv"
)

// PredictionReader reads derived alliance predictions.
type PredictionReader interface {
	PredictedAims(ctx context.Context, matchNumber int) ([]PredictedAim, error)
}

// PredictionsHandler handles prediction reads.
type PredictionsHandler struct {
	deps PredictionReader
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps PredictionReader) *PredictionsHandler {
	return &PredictionsHandler{deps: deps}
}

// HandleGetPredictedAims handles GET /predicted-aims[?match_number=N] requests.
func (h *PredictionsHandler) HandleGetPredictedAims(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_predicted_aims"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	match := 0
	if raw := r.URL.Query().Get("match_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		match = n
	}
	aims, err := h.deps.PredictedAims(r.Context(), match)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if aims == nil {
		aims = []PredictedAim{}
	}
	writeJSON(w, http.StatusOK, aims)
}
