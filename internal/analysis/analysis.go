// Package analysis drives one decision from submission to a terminal result.
package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/decisions/internal/domain"
)

const (
	// DefaultInterval is the delay between two status polls.
	DefaultInterval = 3 * time.Second
	// DefaultMaxPolls caps the number of status polls of one run.
	DefaultMaxPolls = 60
)

// User-facing messages of the terminal phases.
const (
	MsgInvalidStart   = "Failed to start analysis. Invalid response from server."
	MsgTimeout        = "Analysis is taking longer than expected. Please check the History view later."
	MsgAnalysisFailed = "Analysis failed. Please try again or check your input."
	MsgPollFailed     = "Failed to check analysis status. Please refresh and check History."
)

// API is the subset of the service client a run needs.
type API interface {
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error)
	AnalysisStatus(ctx context.Context, decisionID string) (domain.StatusResponse, error)
}

// Phase is the local lifecycle of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseTimeout    Phase = "timeout"
)

// IsTerminal reports whether no further transition can happen.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseTimeout
}

// State is a snapshot of a run.
type State struct {
	RunID      string                 `json:"run_id"`
	Phase      Phase                  `json:"phase"`
	Status     domain.AnalysisStatus  `json:"status,omitempty"`
	DecisionID string                 `json:"decision_id,omitempty"`
	Variants   []string               `json:"variants"`
	Result     *domain.AnalysisResult `json:"result,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Polls      int                    `json:"polls"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// StatusMessage is the progress line shown while a run is in flight.
func StatusMessage(status domain.AnalysisStatus) string {
	switch status {
	case domain.StatusPending:
		return "Initializing analysis..."
	case domain.StatusAnalyzing:
		return "AI is analyzing your decision paths..."
	default:
		return "Processing..."
	}
}

// Options configures a Submitter. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	MaxPolls int
	Logger   *slog.Logger
	// OnChange receives every state transition of every run, from the run's
	// own goroutine. It must not call Run.Stop.
	OnChange func(State)
}

// Submitter starts analysis runs against the service.
type Submitter struct {
	api      API
	interval time.Duration
	maxPolls int
	logger   *slog.Logger
	onChange func(State)
}

// NewSubmitter creates a Submitter.
func NewSubmitter(api API, opts Options) *Submitter {
	s := &Submitter{
		api:      api,
		interval: opts.Interval,
		maxPolls: opts.MaxPolls,
		logger:   opts.Logger,
		onChange: opts.OnChange,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.maxPolls <= 0 {
		s.maxPolls = DefaultMaxPolls
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Submit validates the draft locally and, if it passes, starts a run bound to
// ctx. A rejected draft returns a *domain.ValidationError and sends nothing.
func (s *Submitter) Submit(ctx context.Context, draft domain.Draft) (*Run, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	req := draft.Request()
	r := newRun(ctx, s, req.Variants)
	go r.run(req)
	return r, nil
}
