package main

import (
	"errors"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// errUnavailable is returned after the unavailable view has been shown.
var errUnavailable = errors.New("service unavailable")

type rootFlags struct {
	apiURL      string
	dbPath      string
	logLevel    string
	checkOnline bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "decisions",
		Short: "Record decisions and get them analyzed",
		Long: "decisions records personal decisions, submits them to the analysis service,\n" +
			"follows the analysis to its result and tracks outcomes afterwards.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "analysis service URL (overrides DECISIONS_API_URL)")
	pf.StringVar(&flags.dbPath, "db", "", "settings database path (overrides DECISIONS_DB_PATH)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	pf.BoolVar(&flags.checkOnline, "check-online", true, "check host network interfaces before contacting the service")

	root.AddCommand(
		newAnalyzeCmd(flags),
		newHistoryCmd(flags),
		newOutcomeCmd(flags),
		newStatusCmd(flags),
		newWhoamiCmd(flags),
		newServeCmd(flags),
	)
	return root
}
