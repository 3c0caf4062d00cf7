// Package main is the entry point for the Ed-Fi ODS Admin API server.
package main

import (
	"log/slog"
	"os"

	"github.com/ed-fi-alliance/ods-admin-api/cmd/ods-admin-api/app"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/logging"
)

func main() {
	// Logs go to stderr so that stdout stays clean for commands that print
	// data (version --format json, encrypt, refresh).
	logging.Setup(logging.LevelFromEnv(config.EnvPrefix))

	if err := app.NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
