package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portal-minigame-server/api"
	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/gateway"
	"portal-minigame-server/power"
	"portal-minigame-server/puzzle"
	"portal-minigame-server/ws"
)

var servePort int

var errUnverifiedTokens = errors.New("REQUIRE_TOKEN is set but neither JWT_SECRET nor JWKS_URL is configured")

// checkAuth refuses to require tokens that nothing can verify.
func checkAuth(c *config.Config) error {
	if c.RequireToken && c.JWTSecret == "" && c.JWKSURL == "" {
		return errUnverifiedTokens
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve websocket sessions and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.WSPort = servePort
		}
		if err := checkAuth(cfg); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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
		hub := ws.NewHub(cfg, gw, powers, &puzzle.Onboarding{})
		handler := api.NewHandler(cfg, store, verifier)

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.WSPort),
			Handler:           handler.Routes(hub.ServeWS),
			ReadHeaderTimeout: 10 * time.Second,
		}

		slog.Info("configuration", "portal", cfg.PortalName, "gameSeconds", cfg.GameSeconds,
			"lives", cfg.GameLives, "freeDaily", cfg.Attempts.FreeDaily, "requireToken", cfg.RequireToken)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		g.Go(func() error {
			gw.Run(ctx)
			return nil
		})
		g.Go(func() error {
			slog.Info("portal minigame server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides WS_PORT)")
	rootCmd.AddCommand(serveCmd)
}
