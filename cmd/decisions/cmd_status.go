package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the analysis service is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			st, err := a.checkAvailable(cmd.Context(), out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Service:    %s\n", a.client.BaseURL())
			fmt.Fprintf(out, "Probe:      %s\n", a.cfg.Health.Probe)
			fmt.Fprintf(out, "Online:     %t\n", st.Online)
			fmt.Fprintf(out, "Healthy:    %t\n", st.Healthy)
			fmt.Fprintf(out, "Last check: %s\n", st.LastCheck.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
