package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/citruscircuits/calcserver/internal/domain/calculation"
)

// CalculatorRunner runs a calculator synchronously.
type CalculatorRunner interface {
	RunNow(ctx context.Context, name string) error
}

// RunHandler handles on-demand runs.
type RunHandler struct {
	deps CalculatorRunner
}

// NewRunHandler creates a new run handler.
func NewRunHandler(deps CalculatorRunner) *RunHandler {
	return &RunHandler{deps: deps}
}

type runResponse struct {
	Calculator string `json:"calculator"`
	Status     string `json:"status"`
}

// HandleRun handles POST /run?calculator=NAME requests.
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	name := r.URL.Query().Get("calculator")
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing calculator")))
		return
	}
	err := h.deps.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, calculation.ErrUnknownCalculator):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "run_failed", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Calculator: name, Status: "ok"})
}
