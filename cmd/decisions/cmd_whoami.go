package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoamiCmd(root *rootFlags) *cobra.Command {
	var (
		reset   bool
		restore string
	)
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the identifier attached to every request",
		Long: "Print the anonymous identifier this install sends with every request.\n" +
			"--reset forgets it; a new one is issued on next use and earlier decisions\n" +
			"are no longer listed. --restore brings a previous identifier back.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			switch {
			case restore != "":
				if err := a.ids.Restore(cmd.Context(), restore); err != nil {
					return err
				}
				fmt.Fprintln(out, "Identifier restored.")
				return nil
			case reset:
				exists, err := a.ids.Exists(cmd.Context())
				if err != nil {
					return err
				}
				if !exists {
					fmt.Fprintln(out, "No identifier stored.")
					return nil
				}
				if err := a.ids.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Identifier cleared.")
				return nil
			}

			id, err := a.ids.UserID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "forget the current identifier")
	cmd.Flags().StringVar(&restore, "restore", "", "reuse a previous identifier")
	cmd.MarkFlagsMutuallyExclusive("reset", "restore")
	return cmd
}
