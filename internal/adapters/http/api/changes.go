package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/citruscircuits/calcserver/internal/adapters/mq/queue"
	"github.com/citruscircuits/calcserver/internal/domain/model"
)

// ChangeNotifier schedules calculators watching a changed collection.
type ChangeNotifier interface {
	Notify(ctx context.Context, collection string) (model.NotifyResult, error)
}

// ChangesHandler handles change notifications.
type ChangesHandler struct {
	deps ChangeNotifier
}

// NewChangesHandler creates a new changes handler.
func NewChangesHandler(deps ChangeNotifier) *ChangesHandler {
	return &ChangesHandler{deps: deps}
}

// changeRequest is the body of POST /changes.
type changeRequest struct {
	Collection string `json:"collection"`
}

type changeResponse struct {
	Collection string   `json:"collection"`
	Scheduled  []string `json:"scheduled"`
	Coalesced  []string `json:"coalesced"`
}

// HandlePostChange handles POST /changes requests.
func (h *ChangesHandler) HandlePostChange(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_change"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Collection) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing collection")))
		return
	}

	result, err := h.deps.Notify(r.Context(), req.Collection)
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, changeResponse{
		Collection: req.Collection,
		Scheduled:  result.Scheduled,
		Coalesced:  result.Coalesced,
	})
}
