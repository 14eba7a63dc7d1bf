package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/domain"
	"github.com/ashureev/decisions/internal/view"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	context  string
	variants []string
}

func newAnalyzeCmd(root *rootFlags) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Submit a decision and wait for its analysis",
		Example: `  decisions analyze --context "Should I accept the offer in Berlin?" \
    --variant "Accept=Higher salary and a team I like" \
    --variant "Decline=Family is here"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, root, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.context, "context", "", "what the decision is about (at least 20 characters)")
	f.StringArrayVar(&flags.variants, "variant", nil, `a path as "Title=Essay"; repeat for more paths`)
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootFlags, flags *analyzeFlags) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	variants, err := parseVariants(flags.variants)
	if err != nil {
		return err
	}
	draft := domain.Draft{Context: flags.context, Variants: variants}
	if err := draft.Validate(); err != nil {
		_ = view.Error(errOut, err)
		return err
	}

	a, err := newApp(cmd.Context(), root, errOut, false)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.checkAvailable(cmd.Context(), out); err != nil {
		return err
	}

	// Progress lines come from the run goroutine.
	var mu sync.Mutex
	submitter := analysis.NewSubmitter(a.client, analysis.Options{
		Interval: a.cfg.Poll.Interval,
		MaxPolls: a.cfg.Poll.MaxAttempts,
		Logger:   a.logger,
		OnChange: func(st analysis.State) {
			mu.Lock()
			defer mu.Unlock()
			_ = view.Progress(errOut, st)
		},
	})

	run, err := submitter.Submit(cmd.Context(), draft)
	if err != nil {
		_ = view.Error(errOut, err)
		return err
	}
	defer run.Stop()

	st, err := run.Wait(cmd.Context())
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	switch {
	case st.Phase == analysis.PhaseCompleted:
		fmt.Fprintf(out, "Decision %s\n", st.DecisionID)
		return view.Result(out, st.Variants, st.Result)
	case st.Phase.IsTerminal():
		return errors.New(st.Message)
	default:
		return fmt.Errorf("analysis stopped in phase %s", st.Phase)
	}
}
