package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/api"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/config"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/lockfile"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/logging"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/telemetry"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/temporal"
)

var version = "dev"

// shutdownTimeout bounds how long shutdown waits for the API and worker.
const shutdownTimeout = 30 * time.Second

// waitTimeout waits for wg and reports whether it finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// loadConfig reads path, or returns defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openStore opens the configured backend.
func openStore(cfg *config.Config) (docstore.Store, error) {
	return docstore.Open(cfg.Store.Backend, config.ExpandHome(cfg.General.StateDB), cfg.Store.BusyTimeout.Duration)
}

func main() {
	configPath := flag.String("config", "scrum.toml", "path to config file (empty for defaults)")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	logger.Info("scrumd starting", "config", *configPath, "version", version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfgManager := config.NewManager(cfg)

	var level slog.LevelVar
	var logCloser io.Closer
	logger, logCloser = logging.New(logging.Options{
		Level:     cfg.General.LogLevel,
		Dev:       *dev,
		File:      config.ExpandHome(cfg.General.LogFile),
		MaxSizeMB: cfg.General.LogMaxSizeMB,
		LevelVar:  &level,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	cfgManager.OnReload(func(old, updated *config.Config) {
		if old.General.LogLevel != updated.General.LogLevel {
			level.Set(logging.ParseLevel(updated.General.LogLevel))
			logger.Info("log level changed", "from", old.General.LogLevel, "to", updated.General.LogLevel)
		}
	})

	lock, err := lockfile.Acquire(config.ExpandHome(cfg.General.LockFile))
	if err != nil {
		logger.Error("failed to acquire lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.Init(ctx, cfg.Telemetry, "scrumd", version)
	if err != nil {
		logger.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "path", cfg.General.StateDB, "error", err)
		os.Exit(1)
	}
	st = telemetry.WrapStore(st, providers)
	defer st.Close()

	// goroutines that use the store; shutdown waits for them before closing it
	var running sync.WaitGroup

	if cfg.Temporal.Enabled {
		rec := reconcile.New(st, logger.With("component", "reconcile"))
		running.Add(1)
		go func() {
			defer running.Done()
			logger.Info("starting temporal worker", "host_port", cfg.Temporal.HostPort, "task_queue", cfg.Temporal.TaskQueue)
			if err := temporal.StartWorker(ctx, cfg.Temporal, rec, logger.With("component", "temporal")); err != nil {
				logger.Error("temporal worker error", "error", err)
			}
		}()
	}

	apiSrv := api.NewServer(cfg, st, logger.With("component", "api"))
	running.Add(1)
	go func() {
		defer running.Done()
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server error", "error", err)
		}
	}()

	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, cfgManager, logger.With("component", "config")); err != nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	logger.Info("scrumd running",
		"bind", cfg.API.Bind,
		"backend", cfg.Store.Backend,
		"temporal", cfg.Temporal.Enabled,
		"telemetry", providers.Enabled(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			if *configPath == "" {
				logger.Warn("SIGHUP ignored: running without a config file")
				continue
			}
			if err := cfgManager.Reload(*configPath); err != nil {
				logger.Error(fmt.Sprintf("config reload failed: %v", err))
				continue
			}
			logger.Info("config reloaded", "source", "SIGHUP")
		default:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()

			if !waitTimeout(&running, shutdownTimeout) {
				logger.Warn("api and worker did not stop in time", "timeout", shutdownTimeout.String())
			}

			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			if err := providers.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				logger.Error("telemetry shutdown failed", "error", err)
			}
			done()

			logger.Info("scrumd stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		}
	}
}
