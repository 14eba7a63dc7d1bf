package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/decisions/internal/backend"
	"github.com/ashureev/decisions/internal/domain"
	"github.com/google/uuid"
)

// Run is one submission and its poll task. The task owns a single goroutine
// and ticker; both are released on a terminal phase, on Stop, or when the
// parent context ends. Nothing is sent and no OnChange fires after release.
type Run struct {
	id     string
	s      *Submitter
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.RWMutex
	state State
}

func newRun(parent context.Context, s *Submitter, variants []string) *Run {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &Run{
		id:     id,
		s:      s,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state: State{
			RunID:     id,
			Phase:     PhaseSubmitting,
			Variants:  variants,
			UpdatedAt: time.Now(),
		},
	}
}

// ID returns the local identifier of the run.
func (r *Run) ID() string {
	return r.id
}

// State returns a snapshot of the run.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Done is closed once the poll task has been released.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is released or ctx ends, and returns the last state.
func (r *Run) Wait(ctx context.Context) (State, error) {
	select {
	case <-r.done:
		return r.State(), nil
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
}

// Stop releases the poll task and waits for its goroutine to exit. The state
// keeps its last value. Safe to call more than once.
func (r *Run) Stop() {
	r.cancel()
	<-r.done
}

func (r *Run) run(req domain.AnalyzeRequest) {
	defer close(r.done)
	defer r.cancel()

	logger := r.s.logger.With("run_id", r.ID())
	r.transition(func(st *State) {
		st.Message = StatusMessage(domain.StatusPending)
	})

	resp, err := r.s.api.Analyze(r.ctx, req)
	if r.ctx.Err() != nil {
		logger.Debug("Analysis run released during submission")
		return
	}
	if backend.IsInvalidResponse(err) {
		logger.Warn("Analysis submission returned an unreadable body", "error", err)
		r.finish(PhaseFailed, MsgInvalidStart)
		return
	}
	if err != nil {
		logger.Warn("Analysis submission failed", "error", err)
		r.finish(PhaseFailed, backend.UserMessage(err))
		return
	}
	if resp.DecisionID == "" {
		logger.Warn("Analysis submission returned no decision id")
		r.finish(PhaseFailed, MsgInvalidStart)
		return
	}

	logger = logger.With("decision_id", resp.DecisionID)
	logger.Info("Analysis submitted", "status", resp.Status)
	r.transition(func(st *State) {
		st.Phase = PhasePolling
		st.Status = domain.StatusAnalyzing
		st.DecisionID = resp.DecisionID
		st.Message = StatusMessage(domain.StatusAnalyzing)
	})

	r.poll(resp.DecisionID)

	final := r.State()
	logger.Info("Analysis run finished", "phase", final.Phase, "polls", final.Polls)
}

// poll issues one status request per tick. A slow response delays the next
// tick rather than overlapping it.
func (r *Run) poll(decisionID string) {
	ticker := time.NewTicker(r.s.interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}

		if polls >= r.s.maxPolls {
			r.finish(PhaseTimeout, MsgTimeout)
			return
		}
		polls++

		resp, err := r.s.api.AnalysisStatus(r.ctx, decisionID)
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			r.s.logger.Warn("Analysis status poll failed", "decision_id", decisionID, "poll", polls, "error", err)
			r.transition(func(st *State) {
				st.Polls = polls
				st.Phase = PhaseFailed
				st.Message = MsgPollFailed
			})
			return
		}

		if !resp.Status.IsTerminal() {
			r.transition(func(st *State) {
				st.Polls = polls
				st.Status = resp.Status
				st.Message = StatusMessage(resp.Status)
			})
			continue
		}

		r.transition(func(st *State) {
			st.Polls = polls
			st.Status = resp.Status
			if resp.Status == domain.StatusCompleted {
				st.Phase = PhaseCompleted
				st.Result = resp.Results
				st.Message = ""
				return
			}
			st.Phase = PhaseFailed
			st.Message = MsgAnalysisFailed
		})
		return
	}
}

func (r *Run) finish(phase Phase, msg string) {
	r.transition(func(st *State) {
		st.Phase = phase
		st.Message = msg
	})
}

// transition applies fn and notifies OnChange. It is only called from the
// run goroutine, so a released run can no longer reach it.
func (r *Run) transition(fn func(*State)) {
	if r.ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	fn(&r.state)
	r.state.UpdatedAt = time.Now()
	snapshot := r.state
	r.mu.Unlock()

	if r.s.onChange != nil {
		r.s.onChange(snapshot)
	}
}
