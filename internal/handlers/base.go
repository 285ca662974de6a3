// Package handlers implements the management and inbound HTTP surface.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/dispatch"
	"email-dispatcher/internal/pipeline"
	"email-dispatcher/internal/routing"
	"email-dispatcher/internal/rules"
)

type Handlers struct {
	store        rules.Store
	orchestrator *pipeline.Orchestrator
	table        *routing.Table
	queue        *dispatch.Queue
}

func New(store rules.Store, orchestrator *pipeline.Orchestrator, table *routing.Table, queue *dispatch.Queue) *Handlers {
	return &Handlers{
		store:        store,
		orchestrator: orchestrator,
		table:        table,
		queue:        queue,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetType(err) {
	case apperrors.ErrTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrTypeStoreUnavailable, apperrors.ErrTypeTimeout:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
