package main

import (
	"fmt"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/ashureev/decisions/internal/history"
	"github.com/ashureev/decisions/internal/view"
	"github.com/spf13/cobra"
)

func newOutcomeCmd(root *rootFlags) *cobra.Command {
	var form domain.OutcomeForm
	cmd := &cobra.Command{
		Use:   "outcome <decision-id>",
		Short: "Record what happened after a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := form.ValidateFields(); err != nil {
				_ = view.Error(cmd.ErrOrStderr(), err)
				return err
			}

			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.checkAvailable(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return err
			}

			svc := history.NewService(a.client, a.logger)
			decisions, err := svc.Load(cmd.Context())
			if err != nil {
				_ = view.Error(cmd.ErrOrStderr(), err)
				return err
			}
			decision, ok := history.Find(decisions, args[0])
			if !ok {
				return fmt.Errorf("decision %s not found", args[0])
			}

			confirmed, err := svc.Confirm(cmd.Context(), decision, form)
			if err != nil {
				_ = view.Error(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Outcome recorded.")
			if confirmed.ReloadErr != nil {
				// The outcome is stored; only the refreshed list is missing.
				_ = view.Error(cmd.ErrOrStderr(), confirmed.ReloadErr)
				return view.History(cmd.OutOrStdout(), []domain.Decision{confirmed.Decision}, decision.ID)
			}
			return view.History(cmd.OutOrStdout(), confirmed.Decisions, decision.ID)
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Outcome, "outcome", "", "what actually happened")
	f.StringVar(&form.Variant, "variant", "", "the path you took (one of the decision's paths)")
	return cmd
}
