package view

import (
	"errors"
	"fmt"
	"io"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/backend"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/ashureev/decisions/internal/domain"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Unavailable writes the full-screen unavailable state. Retrying means running
// the command again from scratch.
func Unavailable(w io.Writer, st connectivity.Status) error {
	p := &printer{w: w}
	p.line(text.Bold.Sprint("Service Unavailable"))
	p.line("We're having trouble connecting to our servers. This might be temporary.")
	p.line("")
	p.line(fmt.Sprintf("  online: %t  backend healthy: %t", st.Online, st.Healthy))
	if !st.LastCheck.IsZero() {
		p.line("  last check: " + st.LastCheck.Format("15:04:05"))
	}
	p.line("")
	p.line("If the problem persists:")
	p.bullet("Check your internet connection")
	p.bullet("Make sure the backend server is running")
	p.bullet("Run the command again")
	return p.err
}

// Error writes the user-facing message of err.
func Error(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	msg := backend.UserMessage(err)
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message()
	}
	p := &printer{w: w}
	p.line(text.FgRed.Sprint("Error: ") + msg)
	return p.err
}

// Progress writes one line describing a run's state.
func Progress(w io.Writer, st analysis.State) error {
	p := &printer{w: w}
	switch st.Phase {
	case analysis.PhaseSubmitting:
		p.line("Submitting decision...")
	case analysis.PhasePolling:
		p.line(fmt.Sprintf("%s (check %d)", analysis.StatusMessage(st.Status), st.Polls))
	case analysis.PhaseCompleted:
		p.line(text.FgGreen.Sprint("Analysis complete."))
	case analysis.PhaseFailed, analysis.PhaseTimeout:
		p.line(text.FgRed.Sprint(st.Message))
	default:
		p.line(analysis.StatusMessage(st.Status))
	}
	return p.err
}
