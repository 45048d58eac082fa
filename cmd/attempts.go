package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"portal-minigame-server/attempts"
)

var attemptsFarm int

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Show today's attempts for a farm",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		state, err := store.LoadGameState(cmd.Context(), attemptsFarm)
		if err != nil {
			return fmt.Errorf("loading farm %d: %w", attemptsFarm, err)
		}
		now := time.Now()
		game := state.Game(cfg.PortalName)
		left := attempts.Left(game, attemptsFarm, now, cfg.AttemptRules())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "farm:         %d\n", attemptsFarm)
		fmt.Fprintf(out, "balance:      %d SFL\n", state.Balance)
		if left == attempts.Unlimited {
			fmt.Fprintln(out, "attempts:     unlimited")
		} else {
			fmt.Fprintf(out, "attempts:     %d\n", left)
		}
		fmt.Fprintf(out, "best today:   %d\n", game.BestToday(now))
		fmt.Fprintf(out, "best ever:    %d\n", game.BestAllTime())
		fmt.Fprintf(out, "refreshes at: %s\n", attempts.NextRefresh(now).Format(time.RFC3339))
		return nil
	},
}

func init() {
	attemptsCmd.Flags().IntVar(&attemptsFarm, "farm", 0, "farm id")
	rootCmd.AddCommand(attemptsCmd)
}
