// Package main is the entry point for the identity hub server.
//
// The main package stays minimal:
//  1. Load configuration from the environment
//  2. Build the logger
//  3. Hand both to internal/server and block in Start
//
// Configuration (see internal/config):
//
//	JWT_SECRET                    required, at least 16 characters
//	PORT                          default 8080
//	DB_PATH                       SQLite file, default data/identity.db
//	DATABASE_URL                  use PostgreSQL instead of SQLite
//	FRONTEND_URL                  default http://localhost:5173
//	GOOGLE_CLIENT_ID/SECRET       enable Google login
//	GITHUB_CLIENT_ID/SECRET       enable GitHub login
//	LOG_LEVEL                     debug, info, warn, error
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/identity-hub/internal/config"
	"github.com/sakif/identity-hub/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validated by config.Load.
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
