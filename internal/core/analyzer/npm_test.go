package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/core"
)

func mustRef(t *testing.T, purl string) core.PackageRef {
	t.Helper()
	ref, err := core.ParseComponent(core.Component{PURL: purl})
	require.NoError(t, err)
	return ref
}

func TestNPMAnalyzerLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/-/package/%40apollo%2Ffederation/dist-tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latest":"v6.6.6"}`))
	}))
	defer server.Close()

	a := &NPMAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:npm/%40apollo/federation@0.19.1")
	require.True(t, a.IsApplicable(ref))

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "v6.6.6", meta.LatestVersion)
}

func TestNPMAnalyzerLatestVersionEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	a := &NPMAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:npm/left-pad@1.0.0"), nil)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestNPMAnalyzerIntegrity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/@apollo/federation/-/@apollo/federation-0.19.1.tgz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("X-Checksum-MD5", "md5hash")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := &NPMAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:npm/%40apollo/federation@0.19.1"), nil)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "md5hash", meta.MD5)
	require.Equal(t, server.URL+"/@apollo/federation/-/@apollo/federation-0.19.1.tgz", meta.MetaSourceURL)
}

func TestNPMAnalyzerIntegrityWithoutHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := &NPMAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:npm/left-pad@1.0.0"), nil)
	require.NoError(t, err)
	require.Nil(t, meta)
}
