package api

import (
	"sort"
	"sync"
	"time"

	"github.com/ashureev/decisions/internal/analysis"
)

// finishedRetention is how long a released run stays readable.
const finishedRetention = 10 * time.Minute

// Runs tracks the runs started through the API.
type Runs struct {
	mu   sync.Mutex
	runs map[string]*analysis.Run
	now  func() time.Time
}

// NewRuns creates an empty registry.
func NewRuns() *Runs {
	return &Runs{runs: make(map[string]*analysis.Run), now: time.Now}
}

// Add registers run and forgets runs released long ago.
func (r *Runs) Add(run *analysis.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	r.runs[run.ID()] = run
}

// Get looks a run up.
func (r *Runs) Get(id string) (*analysis.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// Len returns the number of tracked runs.
func (r *Runs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// States returns a snapshot of every tracked run, oldest update first.
func (r *Runs) States() []analysis.State {
	r.mu.Lock()
	states := make([]analysis.State, 0, len(r.runs))
	for _, run := range r.runs {
		states = append(states, run.State())
	}
	r.mu.Unlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.Before(states[j].UpdatedAt)
	})
	return states
}

// Stop releases and forgets a run. It reports whether the run was known.
func (r *Runs) Stop(id string) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	delete(r.runs, id)
	r.mu.Unlock()

	if ok {
		run.Stop()
	}
	return ok
}

// StopAll releases every run.
func (r *Runs) StopAll() {
	r.mu.Lock()
	runs := make([]*analysis.Run, 0, len(r.runs))
	for id, run := range r.runs {
		runs = append(runs, run)
		delete(r.runs, id)
	}
	r.mu.Unlock()

	for _, run := range runs {
		run.Stop()
	}
}

func (r *Runs) pruneLocked() {
	cutoff := r.now().Add(-finishedRetention)
	for id, run := range r.runs {
		select {
		case <-run.Done():
			if run.State().UpdatedAt.Before(cutoff) {
				delete(r.runs, id)
			}
		default:
		}
	}
}
