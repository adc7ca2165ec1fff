// Package main implements the todo CLI, which edits the same persisted
// collection the HTTP server serves.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hiroki-koketsu/go-todo/internal/app"
	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:           "todo",
	Short:         "Manage a todo list",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	storageFlag string
	dataDirFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "storage backend (memory, file, redis, s3, postgres)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory for the file backend")
}

// openApp loads configuration, applies flag overrides and returns a
// hydrated store. The caller must Close the result.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storageFlag != "" {
		cfg.StorageBackend = storageFlag
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, sync, err := telemetry.NewLocalLogger(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return nil, err
	}
	cobra.OnFinalize(func() { _ = sync() })

	return app.Open(commandContext(cmd), cfg, logger)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp opens the store, runs fn and closes it again.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Default().Warn("close storage", slog.Any("error", err))
		}
	}()
	return fn(commandContext(cmd), a)
}
