package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/core/repository"
	errwrap "github.com/pkgmeta/repometa/internal/errors"
	"github.com/pkgmeta/repometa/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify configuration, the repository source and the secret key without starting the service.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			logger.Error("❌ FAIL: Version information missing")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid", zap.String("config_file", configFileLabel()))

		if _, err := loadDecryptor(cfg.Secret); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Secret key unusable", err)
			return
		}
		logger.Info("✅ Secret key usable")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		count, err := countRepositories(ctx, cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFileNotFound, "Repository source unavailable", err)
			return
		}
		if count == 0 {
			logger.Warn("⚠️  No repositories configured; every analysis will return an empty result")
		} else {
			logger.Info("✅ Repository source readable", zap.Int("repositories", count))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func countRepositories(ctx context.Context, cfg *config.Config) (int, error) {
	if cfg.Repositories.Source == config.RepositorySourceFile {
		repos, err := repository.LoadFile(cfg.Repositories.File)
		return len(repos), err
	}
	db, err := openStoreWith(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup
	repos, err := db.ListRepositories(ctx, "")
	return len(repos), err
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
