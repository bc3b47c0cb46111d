package processor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/analyzer"
	"github.com/pkgmeta/repometa/internal/core/engine"
	"github.com/pkgmeta/repometa/internal/core/repository"
	"github.com/pkgmeta/repometa/internal/observability"
)

const federationPURL = "pkg:npm/%40apollo/federation@0.19.1"

func newProcessor(repos ...core.Repository) *Processor {
	return &Processor{
		Analyzers:    analyzer.NewDefaultFactory(nil, "repometa-test"),
		Repositories: &repository.Resolver{Provider: repository.NewStaticProvider(repos...)},
		Resolver:     &engine.MetaResolver{Cache: engine.NewResultCache(0, time.Minute)},
	}
}

func npmRepo(id, url string, order int) core.Repository {
	return core.Repository{Type: core.RepositoryTypeNPM, Identifier: id, URL: url, Enabled: true, ResolutionOrder: order}
}

func TestProcessUnsupportedType(t *testing.T) {
	p := newProcessor()
	cmd := core.AnalysisCommand{
		Component: core.Component{PURL: "pkg:test/com.example/widget@1.0.0", UUID: "u-1"},
		FetchMeta: core.FetchMetaIntegrityDataAndLatestVersion,
	}

	key, result, err := p.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, "test", key.Type)
	require.Equal(t, "u-1", result.Component.UUID)
	require.Empty(t, result.Repository)
	require.Empty(t, result.LatestVersion)
	require.Nil(t, result.Published)
	require.Nil(t, result.IntegrityMeta)
}

func TestProcessMalformedPURL(t *testing.T) {
	p := newProcessor()
	_, _, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: "invalid purl"},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformedInput))
	require.True(t, errors.Is(err, core.ErrMalformedPURL))
}

func TestProcessVisibilityMismatchKeepsType(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := newProcessor(core.Repository{
		Type: core.RepositoryTypeMaven, Identifier: "corp", URL: server.URL, Enabled: true, Internal: true, ResolutionOrder: 1,
	})

	key, result, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: "pkg:maven/com.acme/widget@1.0.0", Internal: false},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.NoError(t, err)
	require.Equal(t, "maven", key.Type)
	require.Empty(t, result.Repository)
	require.Zero(t, calls.Load())
}

func TestProcessVersionFromSecondRepository(t *testing.T) {
	central := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer central.Close()
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() == "/-/package/%40apollo%2Ffederation/dist-tags" {
			_, _ = w.Write([]byte(`{"latest":"v6.6.6"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer internal.Close()

	p := newProcessor(npmRepo("central", central.URL, 1), npmRepo("internal", internal.URL, 2))

	key, result, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: federationPURL, UUID: "u-2"},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.NoError(t, err)
	require.Equal(t, "npm", key.Type)
	require.Equal(t, "@apollo", key.Namespace)
	require.Equal(t, "federation", key.Name)
	require.Equal(t, "0.19.1", key.Version)
	require.Equal(t, "internal", result.Repository)
	require.Equal(t, "v6.6.6", result.LatestVersion)
	require.Nil(t, result.IntegrityMeta)
	require.Equal(t, "u-2", result.Component.UUID)
}

func TestProcessVersionSkipsRepositoryWithoutLatest(t *testing.T) {
	central := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() == "/-/package/%40apollo%2Ffederation/dist-tags" {
			_, _ = w.Write([]byte(`{"type":"version"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer central.Close()
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() == "/-/package/%40apollo%2Ffederation/dist-tags" {
			_, _ = w.Write([]byte(`{"latest":"v6.6.6"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer internal.Close()

	p := newProcessor(npmRepo("central", central.URL, 1), npmRepo("internal", internal.URL, 2))

	_, result, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: federationPURL},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.NoError(t, err)
	require.Equal(t, "internal", result.Repository)
	require.Equal(t, "v6.6.6", result.LatestVersion)
}

func TestProcessQualifiersSelectDistinctArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Path {
		case "/com/acme/widget/1.0.0/widget-1.0.0.jar":
			w.Header().Set("X-Checksum-SHA1", "main-jar-sha1")
		case "/com/acme/widget/1.0.0/widget-1.0.0-sources.jar":
			w.Header().Set("X-Checksum-SHA1", "sources-jar-sha1")
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newProcessor(core.Repository{
		Type: core.RepositoryTypeMaven, Identifier: "central", URL: server.URL, Enabled: true, ResolutionOrder: 1,
	})

	process := func(purl string) core.AnalysisResult {
		_, result, err := p.Process(context.Background(), core.AnalysisCommand{
			Component: core.Component{PURL: purl},
			FetchMeta: core.FetchMetaIntegrityData,
		})
		require.NoError(t, err)
		require.NotNil(t, result.IntegrityMeta)
		return result
	}

	jar := process("pkg:maven/com.acme/widget@1.0.0")
	require.Equal(t, "main-jar-sha1", jar.IntegrityMeta.SHA1)

	sources := process("pkg:maven/com.acme/widget@1.0.0?classifier=sources")
	require.Equal(t, "sources-jar-sha1", sources.IntegrityMeta.SHA1)
	require.Equal(t, server.URL+"/com/acme/widget/1.0.0/widget-1.0.0-sources.jar", sources.IntegrityMeta.MetaSourceURL)
}

func TestProcessPassesAttributeIndependently(t *testing.T) {
	central := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.EscapedPath() == "/-/package/%40apollo%2Ffederation/dist-tags":
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodHead && r.URL.Path == "/@apollo/federation/-/@apollo/federation-0.19.1.tgz":
			w.Header().Set("X-Checksum-MD5", "md5hash")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer central.Close()
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() == "/-/package/%40apollo%2Ffederation/dist-tags" {
			_, _ = w.Write([]byte(`{"latest":"v6.6.6"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer internal.Close()

	p := newProcessor(npmRepo("central", central.URL, 1), npmRepo("internal", internal.URL, 2))

	_, result, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: federationPURL},
		FetchMeta: core.FetchMetaIntegrityDataAndLatestVersion,
	})
	require.NoError(t, err)
	require.Equal(t, "internal", result.Repository)
	require.Equal(t, "v6.6.6", result.LatestVersion)
	require.NotNil(t, result.IntegrityMeta)
	require.Equal(t, "md5hash", result.IntegrityMeta.MD5)
	require.Equal(t, central.URL+"/@apollo/federation/-/@apollo/federation-0.19.1.tgz", result.IntegrityMeta.MetaSourceURL)
}

func TestProcessSingleRepositoryAnswersBoth(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/api/v1/crates/serde":
			_, _ = w.Write([]byte(`{"crate":{"max_stable_version":"1.0.190"},"versions":[{"num":"1.0.190","created_at":"2023-10-20T10:00:00Z"}]}`))
		case "/api/v1/crates/serde/1.0.100":
			_, _ = w.Write([]byte(`{"version":{"checksum":"cratesha"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := newProcessor(
		core.Repository{Type: core.RepositoryTypeCargo, Identifier: "corp-cargo", URL: server.URL, Enabled: true, Internal: true, AuthenticationRequired: false, ResolutionOrder: 1},
	)
	cmd := core.AnalysisCommand{
		Component: core.Component{PURL: "pkg:cargo/serde@1.0.100", Internal: true},
		FetchMeta: core.FetchMetaIntegrityDataAndLatestVersion,
	}

	_, result, err := p.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, "corp-cargo", result.Repository)
	require.Equal(t, "1.0.190", result.LatestVersion)
	require.Equal(t, time.Date(2023, 10, 20, 10, 0, 0, 0, time.UTC), *result.Published)
	require.Equal(t, "cratesha", result.IntegrityMeta.SHA256)
	require.Equal(t, int32(2), calls.Load())

	_, again, err := p.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, result.LatestVersion, again.LatestVersion)
	require.Equal(t, int32(2), calls.Load())
}

type brokenCandidates struct{}

func (brokenCandidates) Candidates(ctx context.Context, repoType core.RepositoryType, internal bool) ([]core.Repository, error) {
	return nil, errors.New("config store offline")
}

func TestProcessProviderFailureDegrades(t *testing.T) {
	p := newProcessor()
	p.Repositories = brokenCandidates{}

	key, result, err := p.Process(context.Background(), core.AnalysisCommand{
		Component: core.Component{PURL: federationPURL, UUID: "u-3"},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.NoError(t, err)
	require.Equal(t, "npm", key.Type)
	require.Equal(t, "u-3", result.Component.UUID)
	require.Empty(t, result.LatestVersion)
}

func TestProcessCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := newProcessor(npmRepo("slow", server.URL, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := p.Process(ctx, core.AnalysisCommand{
		Component: core.Component{PURL: federationPURL},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMalformedInput))
}

func TestProcessLogsCarryContextFields(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	p := newProcessor()
	p.Logger = zap.New(observed)

	ctx := observability.ContextWith(context.Background(), zap.String("request_id", "req-7"))
	_, _, err := p.Process(ctx, core.AnalysisCommand{
		Component: core.Component{PURL: "pkg:test/com.example/widget@1.0.0"},
		FetchMeta: core.FetchMetaLatestVersion,
	})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "req-7", fields["request_id"])
	require.Equal(t, "pkg:test/com.example/widget@1.0.0", fields["purl"])
}
