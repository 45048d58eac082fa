package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"portal-minigame-server/attempts"
	"portal-minigame-server/minigame"
)

// AttemptsConfig holds the daily allowance and the purchase catalogue.
type AttemptsConfig struct {
	FreeDaily          int   `json:"free_daily" env:"FREE_DAILY_ATTEMPTS"`
	BetaTesterAttempts int   `json:"beta_tester_attempts" env:"ATTEMPTS_BETA_TESTERS"`
	BetaTesters        []int `json:"beta_testers" env:"BETA_TESTERS" envSeparator:","`
	// UnlimitedSFL is the price of an unlimited pass. Negative removes the option.
	UnlimitedSFL int                `json:"unlimited_sfl" env:"UNLIMITED_ATTEMPTS_SFL"`
	Restocks     []attempts.Restock `json:"restocks"`
}

// PrizeConfig is the prize seeded into a store (or the offline farm) at startup.
// Score <= 0 means no prize.
type PrizeConfig struct {
	Score int `json:"score" env:"PRIZE_SCORE"`
	Coins int `json:"coins" env:"PRIZE_COINS"`
	// OncePerDay sends runs to complete once today's prize has been claimed.
	OncePerDay bool `json:"once_per_day" env:"PRIZE_ONCE_PER_DAY"`
}

// Config holds all configurable parameters.
type Config struct {
	PortalName     string `json:"portal_name" env:"PORTAL_NAME"`
	GameSeconds    int    `json:"game_seconds" env:"GAME_SECONDS"`
	GameLives      int    `json:"game_lives" env:"GAME_LIVES"`
	ResetAttempts  int    `json:"reset_attempts" env:"RESET_ATTEMPTS"`
	MaxPlayerGifts int    `json:"max_player_gifts" env:"MAX_PLAYER_GIFTS"`
	// MaxPuzzles ends a puzzle-hub run once that many puzzles are solved; 0 disables the cap.
	MaxPuzzles int `json:"max_puzzles" env:"MAX_PUZZLES"`

	// RequireToken sends tokenless sessions to unauthorised instead of loading.
	RequireToken bool   `json:"require_token" env:"REQUIRE_TOKEN"`
	JWTSecret    string `json:"-" env:"JWT_SECRET"`
	JWKSURL      string `json:"jwks_url" env:"JWKS_URL"`

	DatabaseURL    string `json:"-" env:"DATABASE_URL"`
	BoltPath       string `json:"bolt_path" env:"BOLT_PATH"`
	WriteQueueSize int    `json:"write_queue_size" env:"WRITE_QUEUE_SIZE"`

	WSPort              int    `json:"ws_port" env:"WS_PORT"`
	MaxInboundPerSecond int    `json:"max_inbound_per_second" env:"MAX_INBOUND_PER_SECOND"`
	LogLevel            string `json:"log_level" env:"LOG_LEVEL"`

	Attempts AttemptsConfig `json:"attempts"`
	Prize    PrizeConfig    `json:"prize"`
}

// Defaults returns a Config with the shipped game values.
func Defaults() *Config {
	return &Config{
		PortalName:          "christmas",
		GameSeconds:         300,
		GameLives:           5,
		ResetAttempts:       3,
		MaxPlayerGifts:      3,
		MaxPuzzles:          0,
		RequireToken:        false,
		WriteQueueSize:      256,
		WSPort:              8080,
		MaxInboundPerSecond: 30,
		LogLevel:            "info",
		Attempts: AttemptsConfig{
			FreeDaily:          1,
			BetaTesterAttempts: 100,
			BetaTesters:        []int{},
			UnlimitedSFL:       150,
			Restocks: []attempts.Restock{
				{Attempts: 1, SFL: 3},
				{Attempts: 3, SFL: 7},
				{Attempts: 7, SFL: 14},
				{Attempts: 20, SFL: 30},
			},
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config.json", "tag", "config", "err", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		slog.Warn("invalid environment override", "tag", "config", "err", err)
	}

	return cfg
}

// GameDuration is the length of one timed session.
func (c *Config) GameDuration() time.Duration {
	return time.Duration(c.GameSeconds) * time.Second
}

// AttemptRules converts the attempts section for the accounting package.
func (c *Config) AttemptRules() attempts.Rules {
	return attempts.Rules{
		FreeDaily:          c.Attempts.FreeDaily,
		BetaTesterAttempts: c.Attempts.BetaTesterAttempts,
		BetaTesters:        c.Attempts.BetaTesters,
		UnlimitedSFL:       c.Attempts.UnlimitedSFL,
		Restocks:           c.Attempts.Restocks,
	}
}

// SeedPrize returns the configured prize, if any.
func (c *Config) SeedPrize() (minigame.Prize, bool) {
	if c.Prize.Score <= 0 {
		return minigame.Prize{}, false
	}
	return minigame.Prize{Score: c.Prize.Score, Coins: c.Prize.Coins}, true
}

// LogLevelValue parses LogLevel, falling back to info.
func (c *Config) LogLevelValue() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
