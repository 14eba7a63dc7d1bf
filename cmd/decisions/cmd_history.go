package main

import (
	"github.com/ashureev/decisions/internal/history"
	"github.com/ashureev/decisions/internal/view"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var expand string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past decisions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.checkAvailable(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return err
			}

			decisions, err := history.NewService(a.client, a.logger).Load(cmd.Context())
			if err != nil {
				_ = view.Error(cmd.ErrOrStderr(), err)
				return err
			}
			return view.History(cmd.OutOrStdout(), decisions, expand)
		},
	}
	cmd.Flags().StringVar(&expand, "expand", "", "show full details of the decision with this id")
	return cmd
}
