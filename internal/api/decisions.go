package api

import (
	"net/http"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/ashureev/decisions/internal/history"
	"github.com/go-chi/chi/v5"
)

// GetMe returns the install's identifier.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ids.UserID(r.Context())
	if err != nil {
		h.logger.Error("Failed to resolve user id", "error", err)
		Error(w, http.StatusInternalServerError, "failed to resolve user id")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

// ListDecisions returns the history, newest first.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.history.Load(r.Context())
	if err != nil {
		h.writeErr(w, "list decisions", err)
		return
	}
	if decisions == nil {
		decisions = []domain.Decision{}
	}
	JSON(w, http.StatusOK, decisions)
}

// RecordOutcome records the outcome of one decision and returns the decision
// as stored. The view reloads the list itself.
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var form domain.OutcomeForm
	if err := decodeJSON(r, &form); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := form.ValidateFields(); err != nil {
		h.writeErr(w, "record outcome", err)
		return
	}

	decisions, err := h.history.Load(r.Context())
	if err != nil {
		h.writeErr(w, "record outcome", err)
		return
	}
	decision, ok := history.Find(decisions, id)
	if !ok {
		Error(w, http.StatusNotFound, "Resource not found.")
		return
	}

	updated, err := h.history.Record(r.Context(), decision, form)
	if err != nil {
		h.writeErr(w, "record outcome", err)
		return
	}
	JSON(w, http.StatusOK, updated)
}
