package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/core"
)

func TestGoModulesAnalyzerLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/github.com/gorilla/mux/@latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"Version":"v1.3.2","Time":"2023-06-08T06:10:44Z"}`))
	}))
	defer server.Close()

	a := &GoModulesAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:golang/github.com/gorilla/mux@v1.7.0")
	require.True(t, a.IsApplicable(ref))

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "v1.3.2", meta.LatestVersion)
	require.Equal(t, time.Date(2023, 6, 8, 6, 10, 44, 0, time.UTC), *meta.PublishedTimestamp)

	_, err = a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.True(t, errors.Is(err, ErrNotSupported))
}

func TestGoModulesAnalyzerListFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/example.com/mod/@v/list":
			_, _ = w.Write([]byte("v1.0.0\nv1.2.0\nv1.3.0-beta.1\n"))
		case "/example.com/mod/@v/v1.2.0.info":
			_, _ = w.Write([]byte(`{"Version":"v1.2.0","Time":"2022-01-01T00:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := &GoModulesAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:golang/example.com/mod@v1.0.0"), nil)
	require.NoError(t, err)
	require.Equal(t, "v1.2.0", meta.LatestVersion)
	require.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), *meta.PublishedTimestamp)
}

func TestCargoAnalyzer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/crates/serde":
			_, _ = w.Write([]byte(`{"crate":{"max_stable_version":"1.0.190","max_version":"1.0.191-alpha"},"versions":[{"num":"1.0.190","created_at":"2023-10-20T10:00:00Z"}]}`))
		case "/api/v1/crates/serde/1.0.100":
			_, _ = w.Write([]byte(`{"version":{"checksum":"cratesha"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := &CargoAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:cargo/serde@1.0.100")

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "1.0.190", meta.LatestVersion)
	require.Equal(t, time.Date(2023, 10, 20, 10, 0, 0, 0, time.UTC), *meta.PublishedTimestamp)

	integrity, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "cratesha", integrity.SHA256)
	require.Equal(t, server.URL+"/api/v1/crates/serde/1.0.100", integrity.MetaSourceURL)
}

func TestNuGetAnalyzer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3-flatcontainer/newtonsoft.json/index.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"versions":["12.0.3","13.0.1","13.0.4-beta1"]}`))
	}))
	defer server.Close()

	a := &NuGetAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:nuget/Newtonsoft.Json@12.0.3")
	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "13.0.1", meta.LatestVersion)

	_, err = a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.True(t, errors.Is(err, ErrNotSupported))
}

func TestGemAnalyzer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/versions/rails.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[
			{"number":"7.2.0.beta1","prerelease":true,"created_at":"2024-05-01T00:00:00.000Z","platform":"ruby","sha":"beta"},
			{"number":"7.1.3","prerelease":false,"created_at":"2024-01-16T22:00:00.000Z","platform":"ruby","sha":"rails713"},
			{"number":"7.0.0","prerelease":false,"created_at":"2021-12-15T00:00:00.000Z","platform":"java","sha":"java700"},
			{"number":"7.0.0","prerelease":false,"created_at":"2021-12-15T00:00:00.000Z","platform":"ruby","sha":"ruby700"}
		]`))
	}))
	defer server.Close()

	a := &GemAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:gem/rails@7.0.0")

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "7.1.3", meta.LatestVersion)
	require.Equal(t, time.Date(2024, 1, 16, 22, 0, 0, 0, time.UTC), *meta.PublishedTimestamp)

	integrity, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Equal(t, "ruby700", integrity.SHA256)
}

func TestComposerAnalyzer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p2/monolog/monolog.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"packages":{"monolog/monolog":[
			{"version":"dev-main","time":"2024-03-01T00:00:00+00:00"},
			{"version":"3.6.0-RC1","time":"2024-02-01T00:00:00+00:00"},
			{"version":"3.5.0","time":"2023-10-27T15:32:31+00:00","dist":{"shasum":"c915e2634718dbc8a4a15c61b0e62e7a44e14448"}},
			{"version":"2.9.1","time":"2023-02-06T13:44:46+00:00","dist":{"shasum":""}}
		]}}`))
	}))
	defer server.Close()

	a := &ComposerAnalyzer{Base: Base{Client: server.Client()}}

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:composer/monolog/monolog@2.9.1"), nil)
	require.NoError(t, err)
	require.Equal(t, "3.5.0", meta.LatestVersion)
	require.Equal(t, time.Date(2023, 10, 27, 15, 32, 31, 0, time.UTC), *meta.PublishedTimestamp)

	integrity, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:composer/monolog/monolog@3.5.0"), nil)
	require.NoError(t, err)
	require.Equal(t, "c915e2634718dbc8a4a15c61b0e62e7a44e14448", integrity.SHA1)

	integrity, err = a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:composer/monolog/monolog@2.9.1"), nil)
	require.NoError(t, err)
	require.Nil(t, integrity)
}
