package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"portal-minigame-server/config"
	"portal-minigame-server/loghandler"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "portal-minigame-server",
	Short: "Session server for the portal minigame",
	Long: `Hosts timed portal minigame sessions over websockets, keeps attempt
accounting per farm and exposes attempts, leaderboards and prizes over HTTP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, cfg.LogLevelValue())))
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
