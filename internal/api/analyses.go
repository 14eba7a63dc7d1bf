package api

import (
	"net/http"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/go-chi/chi/v5"
)

// StartAnalysis validates a draft and starts a run. The run's progress is
// available from GetAnalysis and the event stream.
func (h *Handler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := decodeJSON(r, &draft); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.submitter.Submit(h.baseCtx, draft)
	if err != nil {
		h.writeErr(w, "start analysis", err)
		return
	}
	h.runs.Add(run)

	h.logger.Info("Analysis run started", "run_id", run.ID())
	JSON(w, http.StatusAccepted, run.State())
}

// GetAnalysis returns a run's current state.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "run not found")
		return
	}
	JSON(w, http.StatusOK, run.State())
}

// StopAnalysis releases a run when its view goes away.
func (h *Handler) StopAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.runs.Stop(id) {
		Error(w, http.StatusNotFound, "run not found")
		return
	}
	h.logger.Info("Analysis run released", "run_id", id)
	w.WriteHeader(http.StatusNoContent)
}
