package main

import (
	"log/slog"

	"github.com/joho/godotenv"

	"portal-minigame-server/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; using environment variables", "tag", "config")
	}
	cmd.Execute()
}
