// Command labctl inspects and maintains the configured sheets from a
// terminal. It reads the same environment as the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/labtrack/internal/application"
	"github.com/JonMunkholm/labtrack/internal/config"
)

func main() {
	// .env is optional here; the server's file is picked up when run from the repo root.
	_ = godotenv.Load()

	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openFromEnv builds the app from environment configuration.
func openFromEnv(ctx context.Context, log *slog.Logger, opts application.Options) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return application.Build(ctx, cfg, log, opts)
}
