package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.PortalName != "christmas" {
		t.Errorf("expected PortalName='christmas', got %q", cfg.PortalName)
	}
	if cfg.GameSeconds != 300 {
		t.Errorf("expected GameSeconds=300, got %d", cfg.GameSeconds)
	}
	if cfg.GameLives != 5 {
		t.Errorf("expected GameLives=5, got %d", cfg.GameLives)
	}
	if cfg.Attempts.FreeDaily != 1 {
		t.Errorf("expected FreeDaily=1, got %d", cfg.Attempts.FreeDaily)
	}
	if cfg.Attempts.UnlimitedSFL != 150 {
		t.Errorf("expected UnlimitedSFL=150, got %d", cfg.Attempts.UnlimitedSFL)
	}
	if len(cfg.Attempts.Restocks) != 4 {
		t.Errorf("expected 4 restocks, got %d", len(cfg.Attempts.Restocks))
	}
	if cfg.WSPort != 8080 {
		t.Errorf("expected WSPort=8080, got %d", cfg.WSPort)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("GAME_SECONDS", "60")
	t.Setenv("GAME_LIVES", "3")
	t.Setenv("BETA_TESTERS", "7,9")
	t.Setenv("UNLIMITED_ATTEMPTS_SFL", "-1")
	t.Setenv("REQUIRE_TOKEN", "true")

	cfg := Load()

	if cfg.GameSeconds != 60 {
		t.Errorf("expected GameSeconds=60 after env override, got %d", cfg.GameSeconds)
	}
	if cfg.GameLives != 3 {
		t.Errorf("expected GameLives=3 after env override, got %d", cfg.GameLives)
	}
	if len(cfg.Attempts.BetaTesters) != 2 || cfg.Attempts.BetaTesters[1] != 9 {
		t.Errorf("expected BetaTesters=[7 9], got %v", cfg.Attempts.BetaTesters)
	}
	if cfg.AttemptRules().UnlimitedEnabled() {
		t.Error("expected unlimited pass disabled")
	}
	if !cfg.RequireToken {
		t.Error("expected RequireToken=true")
	}
	// Untouched fields keep their defaults.
	if cfg.PortalName != "christmas" {
		t.Errorf("expected PortalName to keep default, got %q", cfg.PortalName)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"portal_name":"puzzle-hub","max_puzzles":5,"prize":{"score":12,"coins":3}}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg := Load()

	if cfg.PortalName != "puzzle-hub" {
		t.Errorf("expected PortalName='puzzle-hub', got %q", cfg.PortalName)
	}
	if cfg.MaxPuzzles != 5 {
		t.Errorf("expected MaxPuzzles=5, got %d", cfg.MaxPuzzles)
	}
	prize, ok := cfg.SeedPrize()
	if !ok || prize.Score != 12 || prize.Coins != 3 {
		t.Errorf("expected prize score=12 coins=3, got %+v ok=%v", prize, ok)
	}
	if cfg.GameLives != 5 {
		t.Errorf("expected GameLives default 5, got %d", cfg.GameLives)
	}
}

func TestLogLevelValue(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "debug"
	if cfg.LogLevelValue() != slog.LevelDebug {
		t.Errorf("expected debug, got %v", cfg.LogLevelValue())
	}
	cfg.LogLevel = "nonsense"
	if cfg.LogLevelValue() != slog.LevelInfo {
		t.Errorf("expected info fallback, got %v", cfg.LogLevelValue())
	}
}
