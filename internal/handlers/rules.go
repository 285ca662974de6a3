package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/rules"
)

// HandleListRules returns all rules ordered by (priority, id).
func (h *Handlers) HandleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListRules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetRule returns one rule by id.
func (h *Handlers) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.store.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// HandleCreateRule creates a routing rule.
func (h *Handlers) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, apperrors.ValidationError("invalid rule payload: "+err.Error()))
		return
	}

	if err := validateRule(&rule); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.CreateRule(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// HandleUpdateRule updates a routing rule by id.
func (h *Handlers) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, apperrors.ValidationError("invalid rule payload: "+err.Error()))
		return
	}
	rule.ID = id

	if err := validateRule(&rule); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.UpdateRule(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// HandleDeleteRule removes a routing rule by id.
func (h *Handlers) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.DeleteRule(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ruleID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationError("rule id must be a positive integer")
	}
	return id, nil
}

func validateRule(rule *rules.Rule) error {
	if rule.Name == "" {
		return apperrors.ValidationError("rule name is required")
	}
	if rule.SourceAddress == "" {
		return apperrors.ValidationError("source_address is required")
	}
	if rule.DestinationURL == "" {
		return apperrors.ValidationError("destination_url is required")
	}
	parsed, err := url.Parse(rule.DestinationURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return apperrors.ValidationError("destination_url must be a valid http(s) URL")
	}
	switch rule.DestinationMethod {
	case "", http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return apperrors.ValidationError("destination_method must be POST, PUT or PATCH")
	}
	switch rule.Status {
	case "", rules.StatusActive, rules.StatusInactive:
	default:
		return apperrors.ValidationError("status must be 'active' or 'inactive'")
	}
	return nil
}
