package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	errwrap "github.com/pkgmeta/repometa/internal/errors"
	"github.com/pkgmeta/repometa/internal/metrics"
	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/server"
	"github.com/pkgmeta/repometa/internal/server/handlers"
	"github.com/pkgmeta/repometa/internal/stream"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolution service",
	Long: `Start the HTTP API and, when kafka.enabled is set, the stream consumer.

The HTTP API serves POST /v1/analyze, health probes, /version and /metrics.
With admin.token set it also serves the token-protected /admin endpoints.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the repositories file and drop cached results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		serverOverrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			serverOverrides["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			serverOverrides["port"] = serverPort
		}
		if len(serverOverrides) > 0 {
			overrides["server"] = serverOverrides
		}

		cfg, err := loadConfig(cmd.Context(), overrides)
		if err != nil {
			return errwrap.Wrap(cmd.Context(), errwrap.CodeConfigInvalid, err, "config load failed")
		}

		observability.InitServerLogger(appName, cfg.Logging.Level, cfg.Logging.Profile)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(appName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.Wrap(cmd.Context(), errwrap.CodeInternal, err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing server",
			zap.String("service", appName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", observability.GetMetricsPort()),
			zap.String("repositories_source", cfg.Repositories.Source),
			zap.Bool("kafka", cfg.Kafka.Enabled))

		p, err := buildPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("Failed to build resolution pipeline", zap.Error(err))
			return errwrap.Wrap(cmd.Context(), errwrap.CodeConfigInvalid, err, "pipeline initialization failed")
		}

		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.CheckFunc(func(context.Context) error {
				return observability.MetricsReady()
			}))
		}
		if p.store != nil {
			hm.RegisterChecker("store", handlers.CheckFunc(p.store.Ping))
		}

		var client *kgo.Client
		if cfg.Kafka.Enabled {
			client, err = stream.NewClient(stream.Config{
				Brokers:     cfg.Kafka.Brokers,
				Group:       cfg.Kafka.Group,
				TopicPrefix: cfg.Kafka.TopicPrefix,
				ClientID:    cfg.Kafka.ClientID,
			})
			if err != nil {
				_ = p.Close()
				return errwrap.Wrap(cmd.Context(), errwrap.CodeConfigInvalid, err, "kafka client initialization failed")
			}
			hm.RegisterChecker("kafka", handlers.CheckFunc(client.Ping))
		}

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Version:      versionInfo.Version,
			AdminToken:   cfg.Admin.Token,
			Processor:    p.processor,
			Cache:        p.cache,
			Health:       hm,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		runCtx, stopRunner := context.WithCancel(context.Background())
		runnerDone := make(chan struct{})

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Stop the metrics exporter
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Metrics exporter stop returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Release the store
		signals.OnShutdown(func(ctx context.Context) error {
			if err := p.Close(); err != nil {
				logger.Warn("Store close returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 4: Stop the stream consumer after in-flight records finish
		signals.OnShutdown(func(ctx context.Context) error {
			if client == nil {
				return nil
			}
			logger.Info("Stopping stream consumer...")
			stopRunner()
			select {
			case <-runnerDone:
			case <-time.After(shutdownTimeout):
				logger.Warn("Stream consumer did not stop in time")
			}
			client.Close()
			return nil
		})

		// Handler 5: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			return reloadPipeline(ctx, p, logger)
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now().Unix())

		errChan := make(chan error, 3)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		if client != nil {
			runner := &stream.Runner{
				Consumer: client,
				Producer: client,
				Handler:  p.processor,
				Topics:   stream.TopicNames(cfg.Kafka.TopicPrefix),
				Logger:   logger,
			}
			go func() {
				defer close(runnerDone)
				if err := runner.Run(runCtx); err != nil {
					logger.Error("Stream consumer stopped", zap.Error(err))
					errChan <- err
				}
			}()
		} else {
			close(runnerDone)
		}

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			stopRunner()
			return errwrap.Wrap(cmd.Context(), errwrap.CodeInternal, err, "server error")
		}

		return nil
	},
}

// reloadPipeline re-reads the repositories file and drops cached results.
// Rate limits and credentials apply from the next restart.
func reloadPipeline(ctx context.Context, p *pipeline, logger observability.Logger) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		logger.Error("Failed to reload config", zap.Error(err))
		return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config reload failed")
	}

	if p.files != nil && cfg.Repositories.Source == config.RepositorySourceFile {
		if err := p.files.Reload(); err != nil {
			logger.Error("Failed to reload repositories file",
				zap.String("path", p.files.Path),
				zap.Error(err))
			return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "repositories reload failed")
		}
		logger.Info("Repositories reloaded",
			zap.String("path", p.files.Path),
			zap.Int("count", len(p.files.All())))
	}

	dropped := p.cache.Len()
	p.cache.InvalidateAll()
	metrics.RecordCacheInvalidated(dropped)
	logger.Info("Configuration reloaded", zap.Int("cache_entries_dropped", dropped))
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
