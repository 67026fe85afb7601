// Command analystd is the entry point for the autonomous analysis
// orchestrator: it loads configuration, applies any staged database
// restore, wires the dependency graph, and runs the admin HTTP server and
// the service loop until a shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietridge/analystd/internal/config"
	"github.com/quietridge/analystd/internal/di"
	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/reliability"
	"github.com/quietridge/analystd/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting analystd")

	// A staged restore must be applied before the database this process will
	// open is touched, so it's checked here against a standalone
	// RestoreService built directly from config, before di.Wire opens
	// anything. di.Wire builds its own RestoreService afterward for the
	// running process to stage future restores against.
	if err := applyPendingRestore(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("failed to apply staged restore")
	}

	hostname := resolveHostname(log)
	pid := os.Getpid()

	container, err := di.Wire(cfg, hostname, pid, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close container")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := container.Server.Start(); err != nil {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	if err := container.Service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start service loop")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	container.Service.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := container.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown failed")
	}

	log.Info().Msg("analystd stopped")
}

// applyPendingRestore checks for and executes a staged database restore
// using a RestoreService built directly from cfg, independent of and prior
// to di.Wire's own database/container construction.
func applyPendingRestore(cfg *config.Config, log zerolog.Logger) error {
	var objStore reliability.ObjectStore
	if cfg.S3Bucket != "" {
		store, err := reliability.NewS3Store(context.Background(), reliability.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return err
		}
		objStore = store
	}

	restoreSvc := reliability.NewRestoreService(objStore, cfg.DataDir, events.NewManager(log), log)
	pending, err := restoreSvc.CheckPendingRestore()
	if err != nil {
		log.Error().Err(err).Msg("failed to check for pending restore")
		return nil
	}
	if !pending {
		return nil
	}

	log.Warn().Msg("pending restore detected, executing staged restore")
	if err := restoreSvc.ExecuteStagedRestore(context.Background()); err != nil {
		return err
	}
	log.Info().Msg("restore completed, proceeding with normal startup")
	return nil
}

// resolveHostname identifies this process for the service loop's
// single-instance guard and heartbeat row. gopsutil is used here, at the
// process entry point, rather than inside internal/service, so that
// package stays free of a direct host-introspection dependency.
func resolveHostname(log zerolog.Logger) string {
	info, err := host.Info()
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve host info, falling back to os.Hostname")
		name, err := os.Hostname()
		if err != nil {
			return "unknown"
		}
		return name
	}
	return info.Hostname
}
