package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portal-minigame-server/auth"
	"portal-minigame-server/bot"
	"portal-minigame-server/gateway"
	"portal-minigame-server/power"
	"portal-minigame-server/session"
)

var (
	simBots      int
	simFirstFarm int
	simRuns      int
	simParams    = bot.DefaultParams()
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play scripted sessions against the configured store",
	Long: `Runs bots through full sessions. With JWT_SECRET set each bot signs a token
for its own farm; otherwise bots play as guests and nothing is persisted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := bot.Lookup(simParams.Strategy); !ok {
			return fmt.Errorf("unknown strategy %q (have %s)", simParams.Strategy, strings.Join(bot.Names(), ", "))
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWKSURL)
		if err != nil {
			return err
		}
		gw := gateway.New(cfg, store, verifier)
		powers := power.NewRegistry()
		power.RegisterAll(powers)

		writesCtx, stopWrites := context.WithCancel(ctx)
		writesDone := make(chan struct{})
		go func() {
			gw.Run(writesCtx)
			close(writesDone)
		}()

		var mu sync.Mutex
		out := cmd.OutOrStdout()
		g, ctx := errgroup.WithContext(ctx)
		for i := range simBots {
			farmID := simFirstFarm + i
			g.Go(func() error {
				token := ""
				if cfg.JWTSecret != "" {
					signed, err := auth.Sign(cfg.JWTSecret, farmID, time.Hour)
					if err != nil {
						return err
					}
					token = signed
				}
				m := session.NewMachine(cfg, token, gw, powers)
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go m.Run(runCtx)

				params := simParams
				params.Name = fmt.Sprintf("%s-%d", simParams.Name, farmID)
				rng := rand.New(rand.NewPCG(uint64(farmID), uint64(time.Now().UnixNano())))
				for run := range simRuns {
					res, err := bot.Play(ctx, m, params, rng)
					if err != nil {
						return fmt.Errorf("%s: %w", params.Name, err)
					}
					mu.Lock()
					fmt.Fprintf(out, "%-16s run %d  %-12s score=%d attemptsLeft=%d\n",
						params.Name, run+1, res.State, res.Score, res.Snapshot.Context.AttemptsLeft)
					mu.Unlock()
					if res.NoAttempts {
						break
					}
				}
				return nil
			})
		}
		err = g.Wait()

		stopWrites()
		<-writesDone
		return err
	},
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simBots, "bots", 1, "number of concurrent bots")
	f.IntVar(&simFirstFarm, "farm", 1, "farm id of the first bot")
	f.IntVar(&simRuns, "runs", 1, "runs per bot")
	f.StringVar(&simParams.Name, "name", simParams.Name, "bot name prefix")
	f.StringVar(&simParams.Strategy, "strategy", simParams.Strategy, "bot strategy")
	f.BoolVar(&simParams.Training, "training", false, "play training runs")
	f.IntVar(&simParams.Ticks, "ticks", simParams.Ticks, "strategy steps per run")
	f.IntVar(&simParams.HitChance, "hit", simParams.HitChance, "percentage of successful steps")
	f.IntVar(&simParams.DelayMinMS, "delay-min", 0, "minimum delay between steps (ms)")
	f.IntVar(&simParams.DelayMaxMS, "delay-max", 0, "maximum delay between steps (ms)")
	f.IntVar(&simParams.RestockSFL, "restock", 0, "restock price to pay when out of attempts (0 stops)")
	rootCmd.AddCommand(simulateCmd)
}
