package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/core"
)

func resolvedResult() *core.AnalysisResult {
	published := time.Date(2023, 10, 20, 10, 0, 0, 0, time.UTC)
	return &core.AnalysisResult{
		Component:     core.Component{PURL: "pkg:npm/%40apollo/federation@0.19.1", UUID: "c-1"},
		Repository:    "npmjs",
		LatestVersion: "2.9.3",
		Published:     &published,
		IntegrityMeta: &core.IntegrityMeta{
			SHA1:          "abc123",
			SHA512:        "def456",
			MetaSourceURL: "https://registry.npmjs.org/@apollo/federation/0.19.1",
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatResultListJSON(t *testing.T) {
	rendered, err := FormatResultList(FormatJSON, []*core.AnalysisResult{resolvedResult()})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "["))
	require.Contains(t, rendered, "\"latest_version\": \"2.9.3\"")
	require.Contains(t, rendered, "\"metaSourceUrl\": \"https://registry.npmjs.org/@apollo/federation/0.19.1\"")
}

func TestFormatters(t *testing.T) {
	result := resolvedResult()

	tableRendered, err := NewFormatter(FormatTable).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "FIELD")
	require.Contains(t, tableRendered, "npmjs")
	require.Contains(t, tableRendered, "2023-10-20T10:00:00Z")
	require.Contains(t, tableRendered, "sha1:abc123")
	require.Contains(t, tableRendered, "resolved")

	jsonRendered, err := NewFormatter(FormatJSON).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"repository\": \"npmjs\"")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "| Field | Value |")
	require.Contains(t, markdownRendered, "sha1:abc123<br>sha512:def456")
}

func TestEmptyResultRendersPlaceholders(t *testing.T) {
	result := &core.AnalysisResult{Component: core.Component{PURL: "pkg:test/widget@1.0.0"}}

	rendered, err := NewFormatter(FormatTable).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, rendered, "no data")
	require.NotContains(t, rendered, "Checksums")

	rendered, err = NewFormatter(FormatJSON).FormatResult(result)
	require.NoError(t, err)
	require.NotContains(t, rendered, "integrity_meta")
}

func TestChecksumLabels(t *testing.T) {
	require.Nil(t, checksumLabels(nil))
	require.Nil(t, checksumLabels(&core.IntegrityMeta{MetaSourceURL: "https://x"}))
	require.Equal(t, []string{"md5:m", "sha256:s"}, checksumLabels(&core.IntegrityMeta{SHA256: "s", MD5: "m"}))
}

func TestFormatRepositories(t *testing.T) {
	repos := []core.Repository{
		{Type: core.RepositoryTypeNPM, Identifier: "npmjs", URL: "https://registry.npmjs.org", Enabled: true, ResolutionOrder: 1},
		{Type: core.RepositoryTypeNPM, Identifier: "corp|npm", URL: "https://npm.corp", Enabled: false, Internal: true, AuthenticationRequired: true, Password: "enc", ResolutionOrder: 2},
	}

	rendered, err := NewFormatter(FormatTable).FormatRepositories(repos)
	require.NoError(t, err)
	require.Contains(t, rendered, "IDENTIFIER")
	require.Contains(t, rendered, "disabled,internal,auth")

	rendered, err = NewFormatter(FormatJSON).FormatRepositories(repos)
	require.NoError(t, err)
	require.NotContains(t, rendered, "enc\"")

	rendered, err = NewFormatter(FormatJSON).FormatRepositories(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = NewFormatter(FormatMarkdown).FormatRepositories(repos)
	require.NoError(t, err)
	require.Contains(t, rendered, "corp\\|npm")
}

func TestFormatResultListNonJSON(t *testing.T) {
	rendered, err := FormatResultList(FormatMarkdown, []*core.AnalysisResult{resolvedResult(), nil})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## "))
}
