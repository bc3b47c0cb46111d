package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== repometa Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + appName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFileLabel())
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info("  Log Profile:    " + cfg.Logging.Profile)
		log.Info("  DB Driver:      " + cfg.Store.Driver)
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         " + cfg.Store.URL)
		} else {
			log.Info("  DB Path:        " + cfg.Store.Path)
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info(fmt.Sprintf("  Admin API:      %s", setLabel(cfg.Admin.Token)))
		log.Info("")

		log.Info("Resolution:")
		log.Info("  Repositories:   " + repositorySourceLabel(cfg))
		log.Info("  Cache TTL:      " + cfg.Cache.TTL.String())
		log.Info(fmt.Sprintf("  Cache Size:     %d", cfg.Cache.Size))
		log.Info("  Call Timeout:   " + cfg.Analyzer.Timeout.String())
		log.Info("  User Agent:     " + cfg.Analyzer.UserAgent)
		log.Info(fmt.Sprintf("  Rate Limits:    %d override(s), margin %.2f, persisted %t", len(cfg.RateLimits), cfg.RateLimitMargin, cfg.RateLimitPersist))
		log.Info("  Secret Key:     " + setLabel(cfg.Secret.Key+cfg.Secret.KeyFile))
		log.Info("")

		log.Info("Kafka:")
		log.Info(fmt.Sprintf("  Enabled:        %t", cfg.Kafka.Enabled))
		if cfg.Kafka.Enabled {
			log.Info("  Brokers:        " + strings.Join(cfg.Kafka.Brokers, ","))
			log.Info("  Group:          " + cfg.Kafka.Group)
			log.Info("  Topic Prefix:   " + cfg.Kafka.TopicPrefix)
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func setLabel(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func repositorySourceLabel(cfg *config.Config) string {
	if cfg.Repositories.Source == config.RepositorySourceFile {
		return "file " + cfg.Repositories.File
	}
	return "store"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
