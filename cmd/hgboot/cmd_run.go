package main

import (
	"context"
	"os/signal"
	"syscall"

	"hgboot/internal/logging"
	"hgboot/internal/startup"
	"hgboot/internal/tactile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var waitForChildren bool

// runCmd performs the full startup sequence
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full startup sequence (default)",
	Long: `Runs the startup sequence:
  1. Wait for the higlass-server database
  2. Connect to Galaxy and link the requested datasets
  3. Download chromosome sizes for vector datasets
  4. Submit every dataset to ingest_tileset
  5. Write the default view config and config.js
  6. Install the nginx config, disable index caching and reload nginx

Ingestion and reload processes are not awaited unless --wait is given.`,
	RunE: runStartup,
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newExecutor() *tactile.DirectExecutor {
	execCfg := tactile.DefaultExecutorConfig()
	execCfg.LogDir = cfg.Paths.LogDir
	return tactile.NewDirectExecutorWithConfig(execCfg, logging.Named(logger, logging.CategoryExec))
}

func runStartup(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	seq := startup.New(cfg, newExecutor(), logger)
	report, err := seq.Run(ctx)
	if err != nil {
		return err
	}

	if !waitForChildren {
		return nil
	}

	logger.Info("waiting for launched processes", zap.Int("count", len(report.Handles)))
	results, err := report.Wait(ctx)
	for i, res := range results {
		if res == nil {
			continue
		}
		if res.IsError() || res.Killed || res.ExitCode != 0 {
			logger.Warn("process failed",
				zap.String("command", report.Handles[i].Command.CommandString()),
				zap.Int("exit_code", res.ExitCode),
				zap.String("stderr", res.Stderr),
				zap.String("error", res.Error))
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		// Partial failure does not change the exit status.
		logger.Debug("not every process succeeded", zap.Error(err))
	}
	return nil
}
