package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/email"
	"email-dispatcher/internal/parser"
)

// HandleInbound accepts one parsed email as JSON and queues it for
// dispatch. The 202 response means "queued", not "delivered".
func (h *Handlers) HandleInbound(w http.ResponseWriter, r *http.Request) {
	var msg email.ParsedEmail
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, apperrors.ValidationError("invalid email payload: "+err.Error()))
		return
	}

	if msg.From == "" || len(msg.To) == 0 {
		writeError(w, apperrors.ValidationError("email must carry from and at least one to address"))
		return
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	jobID, err := h.orchestrator.Accept(r.Context(), &msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// HandleInboundRaw accepts a raw RFC 5322 message body, parses it and
// queues it for dispatch.
func (h *Handlers) HandleInboundRaw(w http.ResponseWriter, r *http.Request) {
	msg, err := parser.Parse(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	jobID, err := h.orchestrator.Accept(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}
