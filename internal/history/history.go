// Package history lists past decisions and records their outcomes.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ashureev/decisions/internal/domain"
)

// API is the subset of the service client the history flow needs.
type API interface {
	ListDecisions(ctx context.Context) ([]domain.Decision, error)
	RecordOutcome(ctx context.Context, decisionID string, update domain.OutcomeUpdate) (domain.Decision, error)
}

// Service implements the history view's operations.
type Service struct {
	api    API
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(api API, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, logger: logger}
}

// Load returns the caller's decisions, newest first.
func (s *Service) Load(ctx context.Context) ([]domain.Decision, error) {
	decisions, err := s.api.ListDecisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Timestamp.After(decisions[j].Timestamp.Time)
	})
	return decisions, nil
}

// Find returns the decision with the given id from a loaded list.
func Find(decisions []domain.Decision, id string) (*domain.Decision, bool) {
	for i := range decisions {
		if decisions[i].ID == id {
			return &decisions[i], true
		}
	}
	return nil, false
}

// Record validates form against decision and, if it passes, records the
// outcome. It returns the decision as stored by the service.
func (s *Service) Record(ctx context.Context, decision *domain.Decision, form domain.OutcomeForm) (domain.Decision, error) {
	if err := form.Validate(decision); err != nil {
		return domain.Decision{}, err
	}
	updated, err := s.api.RecordOutcome(ctx, decision.ID, form.Update())
	if err != nil {
		return domain.Decision{}, fmt.Errorf("record outcome: %w", err)
	}
	s.logger.Info("Outcome recorded", "decision_id", decision.ID, "selected_variant", form.Variant)
	return updated, nil
}

// Confirmation is a recorded outcome followed by a history reload.
type Confirmation struct {
	Decision  domain.Decision
	Decisions []domain.Decision
	// ReloadErr is set when the outcome was stored but the reload failed.
	ReloadErr error
}

// Confirm records the outcome of decision, then reloads the history. The
// returned error covers validation and recording only.
func (s *Service) Confirm(ctx context.Context, decision *domain.Decision, form domain.OutcomeForm) (Confirmation, error) {
	updated, err := s.Record(ctx, decision, form)
	if err != nil {
		return Confirmation{}, err
	}
	c := Confirmation{Decision: updated}
	c.Decisions, c.ReloadErr = s.Load(ctx)
	if c.ReloadErr != nil {
		s.logger.Warn("History reload after outcome failed", "decision_id", decision.ID, "error", c.ReloadErr)
	}
	return c, nil
}
