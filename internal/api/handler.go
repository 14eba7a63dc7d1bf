// Package api provides the companion server's HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/backend"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/ashureev/decisions/internal/domain"
	"github.com/go-chi/chi/v5"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Identity supplies the install's identifier.
type Identity interface {
	UserID(ctx context.Context) (string, error)
}

// History is the history flow.
type History interface {
	Load(ctx context.Context) ([]domain.Decision, error)
	Record(ctx context.Context, decision *domain.Decision, form domain.OutcomeForm) (domain.Decision, error)
}

// Submitter starts analysis runs.
type Submitter interface {
	Submit(ctx context.Context, draft domain.Draft) (*analysis.Run, error)
}

// Gate reports connectivity.
type Gate interface {
	Status() connectivity.Status
}

// OnlineSetter receives platform online/offline signals.
type OnlineSetter interface {
	Set(online bool) bool
}

// Deps are the Handler's collaborators.
type Deps struct {
	Identity  Identity
	History   History
	Submitter Submitter
	Gate      Gate
	Online    OnlineSetter
	Runs      *Runs
	// BaseContext bounds every run started through the API. Runs outlive the
	// request that started them but not the server.
	BaseContext context.Context
	Logger      *slog.Logger
}

// Handler serves the local JSON API.
type Handler struct {
	ids       Identity
	history   History
	submitter Submitter
	gate      Gate
	online    OnlineSetter
	runs      *Runs
	baseCtx   context.Context
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		ids:       d.Identity,
		history:   d.History,
		submitter: d.Submitter,
		gate:      d.Gate,
		online:    d.Online,
		runs:      d.Runs,
		baseCtx:   d.BaseContext,
		logger:    d.Logger,
	}
	if h.runs == nil {
		h.runs = NewRuns()
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/connectivity", h.GetConnectivity)
		r.Post("/connectivity/online", h.SetOnline)
		r.Get("/decisions", h.ListDecisions)
		r.Patch("/decisions/{id}/outcome", h.RecordOutcome)
		r.Post("/analyses", h.StartAnalysis)
		r.Get("/analyses/{id}", h.GetAnalysis)
		r.Delete("/analyses/{id}", h.StopAnalysis)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeErr maps a flow error onto a response. Local validation is 422; a
// service error keeps its status, with 502 when the service was unreachable.
func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		Error(w, http.StatusUnprocessableEntity, ve.Message())
		return
	}

	status := http.StatusInternalServerError
	var be *backend.Error
	if errors.As(err, &be) {
		switch {
		case be.Kind == backend.KindNetwork:
			status = http.StatusBadGateway
		case be.Status != 0:
			status = be.Status
		}
	}
	h.logger.Warn("Request failed", "op", op, "status", status, "error", err)
	Error(w, status, backend.UserMessage(err))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
