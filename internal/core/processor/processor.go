package processor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/analyzer"
	"github.com/pkgmeta/repometa/internal/metrics"
	"github.com/pkgmeta/repometa/internal/observability"
)

// ErrMalformedInput marks a command that cannot be processed at all.
var ErrMalformedInput = errors.New("malformed input")

// Processing outcomes reported to metrics.
const (
	outcomeResolved    = "resolved"
	outcomeEmpty       = "empty"
	outcomeUnsupported = "unsupported"
	outcomeDegraded    = "degraded"
)

// AnalyzerSource looks analyzers up by ecosystem.
type AnalyzerSource interface {
	Get(t core.RepositoryType) (analyzer.Analyzer, bool)
}

// CandidateSource returns the ordered repositories for an ecosystem.
type CandidateSource interface {
	Candidates(ctx context.Context, repoType core.RepositoryType, internal bool) ([]core.Repository, error)
}

// MetaResolver resolves metadata across candidates.
type MetaResolver interface {
	Resolve(ctx context.Context, a analyzer.Analyzer, ref core.PackageRef, candidates []core.Repository, fetchMeta core.FetchMeta) (core.MetaModel, error)
}

// Processor turns one analysis command into exactly one result.
type Processor struct {
	Analyzers    AnalyzerSource
	Repositories CandidateSource
	Resolver     MetaResolver
	Logger       observability.Logger
}

// Process handles one command. Only malformed input and cancellation return
// an error; every other failure degrades to an empty result.
func (p *Processor) Process(ctx context.Context, cmd core.AnalysisCommand) (core.ResultKey, core.AnalysisResult, error) {
	ref, err := core.ParseComponent(cmd.Component)
	if err != nil {
		return core.ResultKey{}, core.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	key := core.KeyFor(ref)
	result := core.AnalysisResult{Component: cmd.Component}
	logger := observability.With(observability.FromContext(ctx, p.Logger),
		zap.String("purl", ref.Raw),
		zap.String("uuid", ref.UUID),
		zap.Bool("internal", ref.Internal),
		zap.String("fetch_meta", string(cmd.FetchMeta)),
	)

	repoType := ref.RepositoryType()
	a, ok := p.lookup(repoType)
	if !ok || !a.IsApplicable(ref) {
		logger.Debug("No applicable analyzer", zap.String("type", ref.Type))
		metrics.RecordProcessed(ref.Type, outcomeUnsupported)
		return key, result, nil
	}

	var candidates []core.Repository
	if p.Repositories != nil {
		candidates, err = p.Repositories.Candidates(ctx, repoType, ref.Internal)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return core.ResultKey{}, core.AnalysisResult{}, ctxErr
			}
			logger.Error("Failed to load candidate repositories", zap.Error(err))
			metrics.RecordProcessed(ref.Type, outcomeDegraded)
			return key, result, nil
		}
	}
	if len(candidates) == 0 {
		logger.Debug("No enabled repositories match component visibility", zap.String("type", string(repoType)))
	}

	if p.Resolver == nil {
		metrics.RecordProcessed(ref.Type, outcomeEmpty)
		return key, result, nil
	}
	meta, err := p.Resolver.Resolve(ctx, a, ref, candidates, cmd.FetchMeta)
	if err != nil {
		return core.ResultKey{}, core.AnalysisResult{}, err
	}

	result.Repository = meta.RepositoryIdentifier
	result.LatestVersion = meta.LatestVersion
	result.Published = meta.PublishedTimestamp
	if !meta.Integrity.IsEmpty() {
		result.IntegrityMeta = meta.Integrity
	}

	if meta.IsEmpty() {
		metrics.RecordProcessed(ref.Type, outcomeEmpty)
	} else {
		metrics.RecordProcessed(ref.Type, outcomeResolved)
	}
	logger.Debug("Resolved component",
		zap.String("repository", result.Repository),
		zap.String("latest_version", result.LatestVersion),
		zap.Bool("integrity", result.IntegrityMeta != nil),
	)
	return key, result, nil
}

func (p *Processor) lookup(t core.RepositoryType) (analyzer.Analyzer, bool) {
	if p.Analyzers == nil || t == core.RepositoryTypeUnsupported {
		return nil, false
	}
	return p.Analyzers.Get(t)
}

