package handlers

import (
	"net/http"

	"email-dispatcher/internal/dispatch"
	"email-dispatcher/internal/routing"
)

// StatsResponse aggregates the observability counters of the pipeline.
type StatsResponse struct {
	RoutingTable routing.TableStats  `json:"routing_table"`
	Queue        dispatch.QueueStats `json:"queue"`
}

// HandleStats returns routing table and dispatch queue counters.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		RoutingTable: h.table.Stats(),
		Queue:        h.queue.Stats(),
	})
}
