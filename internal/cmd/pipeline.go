package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/core/analyzer"
	"github.com/pkgmeta/repometa/internal/core/engine"
	"github.com/pkgmeta/repometa/internal/core/processor"
	"github.com/pkgmeta/repometa/internal/core/repository"
	"github.com/pkgmeta/repometa/internal/core/store"
	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/secret"
)

// pipeline holds the resolution components shared by serve and analyze.
type pipeline struct {
	store     *store.Store
	files     *repository.FileProvider
	cache     *engine.ResultCache
	processor *processor.Processor
}

// buildPipeline wires repositories, credentials, rate limiting, the result
// cache and the analyzer factory into a processor.
func buildPipeline(ctx context.Context, cfg *config.Config, logger observability.Logger) (*pipeline, error) {
	logger = observability.OrNop(logger)
	p := &pipeline{}

	if cfg.Repositories.Source == config.RepositorySourceStore || cfg.RateLimitPersist {
		db, err := openStoreWith(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.store = db
	}

	var provider repository.Provider
	switch cfg.Repositories.Source {
	case config.RepositorySourceFile:
		files, err := repository.NewFileProvider(cfg.Repositories.File)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.files = files
		provider = files
		logger.Info("Loaded repositories from file",
			zap.String("path", cfg.Repositories.File),
			zap.Int("count", len(files.All())))
	default:
		provider = p.store
	}

	resolver := &engine.MetaResolver{
		Logger:  logger,
		Timeout: cfg.Analyzer.Timeout,
	}

	decryptor, err := loadDecryptor(cfg.Secret)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	if decryptor != nil {
		resolver.Decryptor = decryptor
	} else {
		logger.Debug("No secret key configured; authenticated repositories are called without passwords")
	}

	limiter := &engine.RateLimiter{Store: engine.NewMemoryRateLimitStore()}
	if cfg.RateLimitPersist && p.store != nil {
		limiter.Store = p.store
	}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)
	resolver.Limiter = limiter

	p.cache = engine.NewResultCache(cfg.Cache.Size, cfg.Cache.TTL)
	resolver.Cache = p.cache

	p.processor = &processor.Processor{
		Analyzers:    analyzer.NewDefaultFactory(nil, cfg.Analyzer.UserAgent),
		Repositories: &repository.Resolver{Provider: provider},
		Resolver:     resolver,
		Logger:       logger,
	}
	return p, nil
}

// Close releases the store, if one was opened.
func (p *pipeline) Close() error {
	if p == nil || p.store == nil {
		return nil
	}
	return p.store.Close()
}

// loadDecryptor returns nil when no key is configured.
func loadDecryptor(cfg config.SecretConfig) (*secret.AESDecryptor, error) {
	var (
		key []byte
		err error
	)
	switch {
	case strings.TrimSpace(cfg.Key) != "":
		key, err = secret.ParseKey(cfg.Key)
	case strings.TrimSpace(cfg.KeyFile) != "":
		key, err = secret.LoadKeyFile(cfg.KeyFile)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load secret key: %w", err)
	}
	return secret.NewAESDecryptor(key)
}
