package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

// fakeService is an in-memory analysis service.
type fakeService struct {
	healthy atomic.Bool
	calls   atomic.Int32
	all     atomic.Int32
	polls   atomic.Int32

	// listFailsAfterOutcome makes GET /decisions fail once an outcome is stored.
	listFailsAfterOutcome atomic.Bool

	mu       sync.Mutex
	userIDs  []string
	outcome  *domain.OutcomeUpdate
	analyzed *domain.AnalyzeRequest
}

const decisionsJSON = `[
  {"id":"d-old","timestamp":"2024-01-10T09:00:00","context":"Whether to adopt a dog this year","variants":["Adopt","Wait"],"arguments":[]},
  {"id":"d-new","timestamp":"2024-05-01T10:00:00.123456","context":"Move to Lisbon or stay in Porto","variants":[{"id":"v1","name":"Move"},{"id":"v2","name":"Stay"}],"arguments":[],"outcome":"","selected_variant":null}
]`

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{}
	f.healthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		if !f.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /decisions", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		stored := f.outcome != nil
		f.mu.Unlock()
		if stored && f.listFailsAfterOutcome.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, decisionsJSON)
	})
	mux.HandleFunc("PATCH /decisions/{id}/outcome", func(w http.ResponseWriter, r *http.Request) {
		var u domain.OutcomeUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.outcome = &u
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"`+r.PathValue("id")+`","timestamp":"2024-05-01T10:00:00","context":"Move to Lisbon or stay in Porto",`+
			`"variants":["Move","Stay"],"arguments":[],"outcome":"`+u.Outcome+`","selected_variant":"`+u.SelectedVariant+`"}`)
	})
	mux.HandleFunc("POST /analysis/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req domain.AnalyzeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.analyzed = &req
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"decision_id":"d-1","status":"pending"}`)
	})
	mux.HandleFunc("GET /analysis/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) < 2 {
			_, _ = io.WriteString(w, `{"decision_id":"d-1","status":"analyzing"}`)
			return
		}
		_, _ = io.WriteString(w, `{"decision_id":"d-1","status":"completed","results":{"ml_scores":{"variant_0":82.5}}}`)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.all.Add(1)
		if r.URL.Path != "/health" {
			f.calls.Add(1)
		}
		f.mu.Lock()
		f.userIDs = append(f.userIDs, r.Header.Get("X-User-ID"))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

type cli struct {
	apiURL string
	dbPath string
}

func newCLI(t *testing.T, apiURL string) *cli {
	t.Helper()
	t.Setenv("POLL_INTERVAL", "5ms")
	t.Setenv("HEALTH_PROBE", "http")
	return &cli{apiURL: apiURL, dbPath: filepath.Join(t.TempDir(), "decisions.db")}
}

func (c *cli) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--api-url", c.apiURL, "--db", c.dbPath, "--check-online=false"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestParseVariants(t *testing.T) {
	got, err := parseVariants([]string{"Accept=Better pay", " Decline = Family is here ", "no title given"})
	require.NoError(t, err)
	want := []domain.Variant{
		{Title: "Accept", Essay: "Better pay"},
		{Title: "Decline", Essay: "Family is here"},
		{Title: "Path C", Essay: "no title given"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseVariants() mismatch (-want +got):\n%s", diff)
	}

	_, err = parseVariants([]string{"=essay without title"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARN":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in).String(), "parseLevel(%q)", in)
	}
}

func TestWhoamiPersistsIdentifier(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	first, _, err := c.run(t, "whoami")
	require.NoError(t, err)
	second, _, err := c.run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, strings.TrimSpace(first))

	out, _, err := c.run(t, "whoami", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Identifier cleared.")

	third, _, err := c.run(t, "whoami")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	out, _, err = c.run(t, "whoami", "--restore", strings.TrimSpace(first))
	require.NoError(t, err)
	assert.Contains(t, out, "Identifier restored.")
	restored, _, err := c.run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, first, restored)

	_, _, err = c.run(t, "whoami", "--restore", "not-a-uuid")
	require.Error(t, err)
}

func TestWhoamiResetWithoutIdentifier(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run(t, "whoami", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "No identifier stored.")
}

func TestHistoryCommand(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run(t, "history")
	require.NoError(t, err)

	newer := strings.Index(out, "d-new")
	older := strings.Index(out, "d-old")
	require.True(t, newer >= 0 && older >= 0, "both decisions listed:\n%s", out)
	assert.Less(t, newer, older, "newest first")
	assert.Contains(t, out, "May 1, 2024")
	assert.Contains(t, out, "pending outcome")

	id, _, err := c.run(t, "whoami")
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.userIDs {
		assert.Equal(t, strings.TrimSpace(id), got)
	}
}

func TestHistoryCommandExpand(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run(t, "history", "--expand", "d-new")
	require.NoError(t, err)
	assert.Contains(t, out, "Move")
	assert.Contains(t, out, "Stay")
}

func TestOutcomeCommand(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	_, _, err := c.run(t, "outcome", "d-new", "--outcome", "Moved and loving it", "--variant", "Move")
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.outcome)
	assert.Equal(t, domain.OutcomeUpdate{Outcome: "Moved and loving it", SelectedVariant: "Move"}, *f.outcome)
}

func TestOutcomeCommandReloadFailureStillReportsRecorded(t *testing.T) {
	f, srv := newFakeService(t)
	f.listFailsAfterOutcome.Store(true)
	c := newCLI(t, srv.URL)

	out, stderr, err := c.run(t, "outcome", "d-new", "--outcome", "went well", "--variant", "Move")
	require.NoError(t, err, "stderr:\n%s", stderr)
	assert.Contains(t, out, "Outcome recorded.")
	assert.Contains(t, out, "went well")
	assert.Contains(t, stderr, "Resource not found.")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.outcome)
}

func TestOutcomeCommandBlankFieldsSendNothing(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	for _, args := range [][]string{
		{"outcome", "d-new", "--variant", "Move"},
		{"outcome", "d-new", "--outcome", "went well", "--variant", " "},
	} {
		_, stderr, err := c.run(t, args...)
		require.Error(t, err, "%v", args)
		assert.Contains(t, stderr, "Error:")
	}
	assert.Zero(t, f.all.Load())
}

func TestOutcomeCommandRejectsForeignVariant(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	_, stderr, err := c.run(t, "outcome", "d-new", "--outcome", "Stayed", "--variant", "Adopt")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Nil(t, f.outcome)
}

func TestOutcomeCommandUnknownDecision(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	_, _, err := c.run(t, "outcome", "missing", "--outcome", "x", "--variant", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAnalyzeCommand(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	out, stderr, err := c.run(t, "analyze",
		"--context", "Should I accept the offer in Berlin?",
		"--variant", "Accept=Higher salary and a team I like",
		"--variant", "Decline=",
	)
	require.NoError(t, err, "stderr:\n%s", stderr)

	assert.Contains(t, out, "Decision d-1")
	assert.Contains(t, out, "Accept")
	assert.Contains(t, out, "82.5")
	assert.Contains(t, stderr, "Submitting decision...")
	assert.Contains(t, stderr, "Analysis complete.")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.analyzed)
	assert.Equal(t, []string{"Accept"}, f.analyzed.Variants)
	assert.Nil(t, f.analyzed.SelectedVariant)
}

func TestAnalyzeCommandValidationSendsNothing(t *testing.T) {
	f, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	_, stderr, err := c.run(t, "analyze", "--context", "too short", "--variant", "A=essay")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")
	assert.Zero(t, f.calls.Load())
}

func TestUnavailableService(t *testing.T) {
	f, srv := newFakeService(t)
	f.healthy.Store(false)
	c := newCLI(t, srv.URL)

	for _, args := range [][]string{{"status"}, {"history"}} {
		out, _, err := c.run(t, args...)
		require.ErrorIs(t, err, errUnavailable, "%v", args)
		assert.Contains(t, out, "Service Unavailable")
	}
	assert.Zero(t, f.calls.Load())
}

func TestStatusCommand(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL)
	assert.Contains(t, out, "Healthy:    true")
}
