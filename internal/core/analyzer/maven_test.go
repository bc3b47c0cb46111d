package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/core"
)

const mavenMetadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>com.acme</groupId>
  <artifactId>widget</artifactId>
  <versioning>
    <latest>2.0.0-SNAPSHOT</latest>
    <release>1.9.0</release>
    <versions>
      <version>1.0.0</version>
      <version>1.9.0</version>
      <version>2.0.0-SNAPSHOT</version>
    </versions>
    <lastUpdated>20240102030405</lastUpdated>
  </versioning>
</metadata>`

func TestMavenAnalyzerLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com/acme/widget/maven-metadata.xml":
			_, _ = w.Write([]byte(mavenMetadataXML))
		case "/com/acme/widget/1.9.0/widget-1.9.0.pom":
			w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 10:00:00 GMT")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := &MavenAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:maven/com.acme/widget@1.0.0")
	require.True(t, a.IsApplicable(ref))

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL + "/"}, ref, nil)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "1.9.0", meta.LatestVersion)
	require.NotNil(t, meta.PublishedTimestamp)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), *meta.PublishedTimestamp)
}

func TestMavenAnalyzerLatestFromVersionList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/com/acme/widget/maven-metadata.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`<metadata><versioning><versions><version>1.2.0</version><version>1.10.0</version><version>2.0.0-rc1</version></versions><lastUpdated>20240102030405</lastUpdated></versioning></metadata>`))
	}))
	defer server.Close()

	a := &MavenAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:maven/com.acme/widget@1.0.0"), nil)
	require.NoError(t, err)
	require.Equal(t, "1.10.0", meta.LatestVersion)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), *meta.PublishedTimestamp)
}

func TestMavenAnalyzerIntegrityHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/com/acme/widget/1.0.0/widget-1.0.0-sources.war" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("X-Checksum-SHA1", "sha1hash")
		w.Header().Set("X-Checksum-SHA256", "sha256hash")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := &MavenAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:maven/com.acme/widget@1.0.0?type=war&classifier=sources"), nil)
	require.NoError(t, err)
	require.Equal(t, "sha1hash", meta.SHA1)
	require.Equal(t, "sha256hash", meta.SHA256)
}

func TestMavenAnalyzerIntegritySidecars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com/acme/widget/1.0.0/widget-1.0.0.jar":
			w.WriteHeader(http.StatusOK)
		case "/com/acme/widget/1.0.0/widget-1.0.0.jar.sha1":
			_, _ = w.Write([]byte("ABCDEF0123  widget-1.0.0.jar\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := &MavenAnalyzer{Base: Base{Client: server.Client()}}
	meta, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, mustRef(t, "pkg:maven/com.acme/widget@1.0.0"), nil)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "abcdef0123", meta.SHA1)
	require.Empty(t, meta.MD5)
	require.Equal(t, server.URL+"/com/acme/widget/1.0.0/widget-1.0.0.jar", meta.MetaSourceURL)
}

func TestMavenAnalyzerMissingArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := &MavenAnalyzer{Base: Base{Client: server.Client()}}
	ref := mustRef(t, "pkg:maven/com.acme/widget@1.0.0")

	meta, err := a.FetchLatestVersion(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Nil(t, meta)

	integrity, err := a.FetchIntegrity(context.Background(), core.Repository{URL: server.URL}, ref, nil)
	require.NoError(t, err)
	require.Nil(t, integrity)

	require.False(t, a.IsApplicable(mustRef(t, "pkg:maven/widget@1.0.0")))
}

func TestHighestSemver(t *testing.T) {
	require.Equal(t, "1.10.0", highestSemver([]string{"1.2.0", "1.10.0", "bogus"}, false))
	require.Equal(t, "2.0.0-rc1", highestSemver([]string{"2.0.0-rc1"}, false))
	require.Equal(t, "2.0.0-rc1", highestSemver([]string{"1.0.0", "2.0.0-rc1"}, true))
	require.Empty(t, highestSemver(nil, false))
}
