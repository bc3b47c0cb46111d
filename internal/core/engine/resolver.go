package engine

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/analyzer"
	"github.com/pkgmeta/repometa/internal/metrics"
	"github.com/pkgmeta/repometa/internal/observability"
)

// DefaultCallTimeout bounds a single registry call.
const DefaultCallTimeout = 10 * time.Second

const (
	capabilityLatestVersion = "latest_version"
	capabilityIntegrity     = "integrity"
)

// SecretDecryptor turns a stored credential reference into plaintext.
type SecretDecryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// MetaResolver runs the version and integrity passes over ordered candidates.
type MetaResolver struct {
	Cache     *ResultCache
	Decryptor SecretDecryptor
	Limiter   *RateLimiter
	Logger    observability.Logger
	Timeout   time.Duration
}

// Resolve returns the merged outcome for ref. Registry failures never surface
// as errors; only cancellation of ctx does, and nothing is cached then.
func (r *MetaResolver) Resolve(ctx context.Context, a analyzer.Analyzer, ref core.PackageRef, candidates []core.Repository, fetchMeta core.FetchMeta) (core.MetaModel, error) {
	if !fetchMeta.WantsLatestVersion() && !fetchMeta.WantsIntegrity() {
		return core.MetaModel{}, nil
	}
	if a == nil || !a.IsApplicable(ref) {
		return core.MetaModel{}, nil
	}

	repoType := string(a.Type())
	key := CacheKey(ref, fetchMeta)
	if r.Cache != nil {
		if cached, ok := r.Cache.Get(key); ok {
			metrics.RecordCacheLookup(repoType, true)
			return cached, nil
		}
		metrics.RecordCacheLookup(repoType, false)
	}

	if len(candidates) == 0 {
		return core.MetaModel{}, nil
	}

	started := time.Now()
	var outcome core.MetaModel
	settled := true

	if fetchMeta.WantsLatestVersion() {
		repo, model, answered := r.latestVersionPass(ctx, a, ref, candidates)
		if model != nil {
			outcome.RepositoryIdentifier = repo
			outcome.LatestVersion = model.LatestVersion
			outcome.PublishedTimestamp = model.PublishedTimestamp
		}
		settled = settled && answered
	}
	if err := ctx.Err(); err != nil {
		return core.MetaModel{}, err
	}

	if fetchMeta.WantsIntegrity() {
		meta, answered := r.integrityPass(ctx, a, ref, candidates)
		outcome.Integrity = meta
		settled = settled && answered
	}
	if err := ctx.Err(); err != nil {
		return core.MetaModel{}, err
	}

	// A pass where every candidate failed (throttled, timed out, 5xx) has no
	// answer yet and stays uncached.
	if settled {
		r.Cache.Put(key, outcome)
	} else {
		observability.FromContext(ctx, r.Logger).Debug("Not caching outcome of failed repository calls",
			zap.String("type", repoType),
			zap.String("purl", ref.CanonicalPURL()))
	}
	metrics.RecordResolution(repoType, time.Since(started))
	return outcome, nil
}

// latestVersionPass returns the first candidate with a version. answered is
// false when every candidate failed rather than replying.
func (r *MetaResolver) latestVersionPass(ctx context.Context, a analyzer.Analyzer, ref core.PackageRef, candidates []core.Repository) (string, *core.MetaModel, bool) {
	answered := false
	for _, repo := range candidates {
		if ctx.Err() != nil {
			return "", nil, answered
		}

		var model *core.MetaModel
		found, err := r.attempt(ctx, a, repo, capabilityLatestVersion, func(callCtx context.Context, cred *analyzer.Credential) (bool, error) {
			var err error
			model, err = a.FetchLatestVersion(callCtx, repo, ref, cred)
			return err == nil && model != nil && (model.LatestVersion != "" || model.PublishedTimestamp != nil), err
		})
		if errors.Is(err, analyzer.ErrNotSupported) {
			return "", nil, true
		}
		if found {
			return repo.Identifier, model, true
		}
		answered = answered || err == nil
	}
	return "", nil, answered
}

func (r *MetaResolver) integrityPass(ctx context.Context, a analyzer.Analyzer, ref core.PackageRef, candidates []core.Repository) (*core.IntegrityMeta, bool) {
	answered := false
	for _, repo := range candidates {
		if ctx.Err() != nil {
			return nil, answered
		}

		var meta *core.IntegrityMeta
		found, err := r.attempt(ctx, a, repo, capabilityIntegrity, func(callCtx context.Context, cred *analyzer.Credential) (bool, error) {
			var err error
			meta, err = a.FetchIntegrity(callCtx, repo, ref, cred)
			return err == nil && !meta.IsEmpty(), err
		})
		if errors.Is(err, analyzer.ErrNotSupported) {
			return nil, true
		}
		if found {
			return meta, true
		}
		answered = answered || err == nil
	}
	return nil, answered
}

// attempt performs one bounded call against one candidate, applying rate
// limits and credentials, and records the outcome. The returned error is
// only informative; callers move on to the next candidate.
func (r *MetaResolver) attempt(ctx context.Context, a analyzer.Analyzer, repo core.Repository, capability string, call func(context.Context, *analyzer.Credential) (bool, error)) (bool, error) {
	logger := observability.With(observability.FromContext(ctx, r.Logger),
		zap.String("repository", repo.Identifier),
		zap.String("type", string(a.Type())),
		zap.String("capability", capability),
	)
	host := RepositoryHost(repo.URL)

	if r.Limiter != nil && host != "" {
		allowed, wait, err := r.Limiter.Allow(ctx, host)
		if err != nil {
			logger.Warn("Rate limit state unavailable", zap.Error(err))
		}
		if !allowed {
			logger.Debug("Skipping throttled repository", zap.Duration("retry_in", wait))
			metrics.RecordAnalyzerCall(string(a.Type()), capability, repo.Identifier, metrics.OutcomeThrottled, 0)
			return false, errThrottled
		}
		if err := r.Limiter.Record(ctx, host); err != nil {
			logger.Warn("Failed to record rate limit state", zap.Error(err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	started := time.Now()
	found, err := call(callCtx, r.credential(repo, logger))
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, analyzer.ErrNotSupported):
		metrics.RecordAnalyzerCall(string(a.Type()), capability, repo.Identifier, metrics.OutcomeUnsupported, elapsed)
	case err != nil:
		if statusErr, limited := analyzer.IsRateLimited(err); limited && r.Limiter != nil && host != "" {
			if recErr := r.Limiter.Record429(ctx, host, statusErr.RetryAfter); recErr != nil {
				logger.Warn("Failed to record backoff", zap.Error(recErr))
			}
		}
		if ctx.Err() == nil {
			logger.Warn("Repository call failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		}
		metrics.RecordAnalyzerCall(string(a.Type()), capability, repo.Identifier, metrics.OutcomeError, elapsed)
	case found:
		metrics.RecordAnalyzerCall(string(a.Type()), capability, repo.Identifier, metrics.OutcomeData, elapsed)
	default:
		logger.Debug("Repository returned no data")
		metrics.RecordAnalyzerCall(string(a.Type()), capability, repo.Identifier, metrics.OutcomeEmpty, elapsed)
	}
	return found, err
}

var errThrottled = errors.New("repository throttled")

func (r *MetaResolver) credential(repo core.Repository, logger observability.Logger) *analyzer.Credential {
	if !repo.AuthenticationRequired {
		return nil
	}
	if repo.Password == "" {
		if repo.Username == "" {
			return nil
		}
		return &analyzer.Credential{Username: repo.Username}
	}
	if r.Decryptor == nil {
		logger.Warn("No secret decryptor configured; calling without credentials")
		return nil
	}
	password, err := r.Decryptor.Decrypt(repo.Password)
	if err != nil {
		logger.Warn("Failed to decrypt repository credential; calling without credentials", zap.Error(err))
		return nil
	}
	return &analyzer.Credential{Username: repo.Username, Password: password}
}

func (r *MetaResolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultCallTimeout
}

// RepositoryHost is the rate limit key of a repository URL: its lowercased
// host name, or empty when the URL does not parse.
func RepositoryHost(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
