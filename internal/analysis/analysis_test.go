package analysis

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/decisions/internal/backend"
	"github.com/ashureev/decisions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI answers Analyze with submitResp/submitErr and each poll with the
// next entry of polls; the last entry repeats.
type fakeAPI struct {
	submitResp domain.AnalyzeResponse
	submitErr  error
	polls      []pollAnswer

	submits atomic.Int32
	calls   atomic.Int32
	lastReq atomic.Value
}

type pollAnswer struct {
	resp domain.StatusResponse
	err  error
}

func (f *fakeAPI) Analyze(_ context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error) {
	f.submits.Add(1)
	f.lastReq.Store(req)
	return f.submitResp, f.submitErr
}

func (f *fakeAPI) AnalysisStatus(_ context.Context, id string) (domain.StatusResponse, error) {
	n := int(f.calls.Add(1)) - 1
	if len(f.polls) == 0 {
		return domain.StatusResponse{DecisionID: id, Status: domain.StatusAnalyzing}, nil
	}
	if n >= len(f.polls) {
		n = len(f.polls) - 1
	}
	return f.polls[n].resp, f.polls[n].err
}

// recorder collects OnChange notifications.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, 0, len(r.states))
	for _, s := range r.states {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}

func validDraft() domain.Draft {
	return domain.Draft{
		Context:  "Should I accept the job offer in Berlin?",
		Variants: []domain.Variant{{Title: "Path A", Essay: "because X"}},
	}
}

func newTestSubmitter(api API, rec *recorder, maxPolls int) *Submitter {
	return NewSubmitter(api, Options{
		Interval: time.Millisecond,
		MaxPolls: maxPolls,
		OnChange: rec.record,
	})
}

func waitRun(t *testing.T, r *Run) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := r.Wait(ctx)
	require.NoError(t, err, "run did not finish")
	return st
}

func TestSubmit_CompletesWithResult(t *testing.T) {
	api := &fakeAPI{
		submitResp: domain.AnalyzeResponse{DecisionID: "d1", Status: domain.StatusPending},
		polls: []pollAnswer{
			{resp: domain.StatusResponse{DecisionID: "d1", Status: domain.StatusAnalyzing}},
			{resp: domain.StatusResponse{DecisionID: "d1", Status: domain.StatusAnalyzing}},
			{resp: domain.StatusResponse{
				DecisionID: "d1",
				Status:     domain.StatusCompleted,
				Results:    &domain.AnalysisResult{MLScores: map[string]float64{"variant_0": 82.5}},
			}},
		},
	}
	rec := &recorder{}
	run, err := newTestSubmitter(api, rec, 60).Submit(context.Background(), validDraft())
	require.NoError(t, err)

	st := waitRun(t, run)
	assert.Equal(t, PhaseCompleted, st.Phase)
	assert.Equal(t, domain.StatusCompleted, st.Status)
	assert.Equal(t, "d1", st.DecisionID)
	assert.Equal(t, 3, st.Polls)
	assert.Equal(t, []string{"Path A"}, st.Variants)

	score, ok := st.Result.ScoreFor(0)
	assert.True(t, ok)
	assert.InDelta(t, 82.5, score, 1e-9)

	assert.EqualValues(t, 1, api.submits.Load())
	assert.EqualValues(t, 3, api.calls.Load())
	assert.Equal(t, []Phase{PhaseSubmitting, PhasePolling, PhaseCompleted}, rec.phases())

	req := api.lastReq.Load().(domain.AnalyzeRequest)
	assert.Nil(t, req.SelectedVariant)
	assert.Equal(t, []string{"Path A"}, req.Variants)
}

func TestSubmit_ValidationSendsNothing(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	s := newTestSubmitter(api, rec, 60)

	_, err := s.Submit(context.Background(), domain.Draft{
		Context:  strings.Repeat("x", 19),
		Variants: []domain.Variant{{Title: "Path A", Essay: "because X"}},
	})
	require.ErrorIs(t, err, domain.ErrContextTooShort)

	_, err = s.Submit(context.Background(), domain.Draft{
		Context:  strings.Repeat("x", 30),
		Variants: []domain.Variant{{Title: "Path A"}},
	})
	require.ErrorIs(t, err, domain.ErrNoCompleteVariant)

	assert.Zero(t, api.submits.Load())
	assert.Zero(t, rec.count())
}

func TestSubmit_TimesOutAfterMaxPolls(t *testing.T) {
	api := &fakeAPI{
		submitResp: domain.AnalyzeResponse{DecisionID: "d1"},
		polls:      []pollAnswer{{resp: domain.StatusResponse{DecisionID: "d1", Status: domain.StatusPending}}},
	}
	rec := &recorder{}
	run, err := newTestSubmitter(api, rec, 60).Submit(context.Background(), validDraft())
	require.NoError(t, err)

	st := waitRun(t, run)
	assert.Equal(t, PhaseTimeout, st.Phase)
	assert.Equal(t, MsgTimeout, st.Message)
	assert.Equal(t, 60, st.Polls)
	assert.EqualValues(t, 60, api.calls.Load(), "the tick after the cap must not poll")
}

func TestSubmit_FailureModes(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeAPI
		wantMsg string
		polls   int32
	}{
		{
			name:    "missing decision id",
			api:     &fakeAPI{submitResp: domain.AnalyzeResponse{Status: domain.StatusPending}},
			wantMsg: MsgInvalidStart,
		},
		{
			name: "submission rejected",
			api: &fakeAPI{submitErr: &backend.Error{
				Op: "analyze decision", Kind: backend.KindValidation, Status: http.StatusUnprocessableEntity,
				Message: "Context must contain at least 10 words",
			}},
			wantMsg: "Context must contain at least 10 words",
		},
		{
			name: "accepted with unreadable body",
			api: &fakeAPI{submitErr: &backend.Error{
				Op: "analyze decision", Kind: backend.KindInvalidResponse,
				Message: "Invalid response from server.", Err: errors.New("decode response: invalid character '<'"),
			}},
			wantMsg: MsgInvalidStart,
		},
		{
			name: "analysis failed on the server",
			api: &fakeAPI{
				submitResp: domain.AnalyzeResponse{DecisionID: "d1"},
				polls: []pollAnswer{
					{resp: domain.StatusResponse{Status: domain.StatusAnalyzing}},
					{resp: domain.StatusResponse{Status: domain.StatusFailed}},
				},
			},
			wantMsg: MsgAnalysisFailed,
			polls:   2,
		},
		{
			name: "poll request error",
			api: &fakeAPI{
				submitResp: domain.AnalyzeResponse{DecisionID: "d1"},
				polls:      []pollAnswer{{err: errors.New("connection reset")}},
			},
			wantMsg: MsgPollFailed,
			polls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			run, err := newTestSubmitter(tt.api, rec, 60).Submit(context.Background(), validDraft())
			require.NoError(t, err)

			st := waitRun(t, run)
			assert.Equal(t, PhaseFailed, st.Phase)
			assert.Equal(t, tt.wantMsg, st.Message)
			assert.Nil(t, st.Result)
			assert.Equal(t, tt.polls, tt.api.calls.Load())
		})
	}
}

func TestRun_StopReleasesPollTask(t *testing.T) {
	api := &fakeAPI{submitResp: domain.AnalyzeResponse{DecisionID: "d1"}}
	rec := &recorder{}
	run, err := newTestSubmitter(api, rec, 1_000_000).Submit(context.Background(), validDraft())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return api.calls.Load() >= 3 }, 5*time.Second, time.Millisecond)
	run.Stop()

	calls, notified := api.calls.Load(), rec.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, api.calls.Load(), "no poll after release")
	assert.Equal(t, notified, rec.count(), "no state change after release")
	assert.Equal(t, PhasePolling, run.State().Phase)

	// Idempotent.
	run.Stop()
}

func TestRun_ParentCancellationReleases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{submitResp: domain.AnalyzeResponse{DecisionID: "d1"}}
	run, err := newTestSubmitter(api, &recorder{}, 1_000_000).Submit(ctx, validDraft())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return api.calls.Load() >= 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run not released after parent cancellation")
	}
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Initializing analysis...", StatusMessage(domain.StatusPending))
	assert.Equal(t, "AI is analyzing your decision paths...", StatusMessage(domain.StatusAnalyzing))
	assert.Equal(t, "Processing...", StatusMessage(domain.StatusCompleted))
	assert.Equal(t, "Processing...", StatusMessage(""))
}

func TestPhaseIsTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseCompleted, PhaseFailed, PhaseTimeout} {
		assert.True(t, p.IsTerminal(), p)
	}
	for _, p := range []Phase{PhaseIdle, PhaseSubmitting, PhasePolling} {
		assert.False(t, p.IsTerminal(), p)
	}
}
