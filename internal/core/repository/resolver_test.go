package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/core"
)

func identifiers(repos []core.Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Identifier)
	}
	return out
}

func TestCandidatesFilterAndOrder(t *testing.T) {
	provider := NewStaticProvider(
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "late", Enabled: true, ResolutionOrder: 5},
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "first", Enabled: true, ResolutionOrder: 1},
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "tie-a", Enabled: true, ResolutionOrder: 3},
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "tie-b", Enabled: true, ResolutionOrder: 3},
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "disabled", Enabled: false, ResolutionOrder: 0},
		core.Repository{Type: core.RepositoryTypeNPM, Identifier: "private", Enabled: true, Internal: true, ResolutionOrder: 0},
		core.Repository{Type: core.RepositoryTypeMaven, Identifier: "central", Enabled: true, ResolutionOrder: 0},
	)
	resolver := &Resolver{Provider: provider}

	public, err := resolver.Candidates(context.Background(), core.RepositoryTypeNPM, false)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "tie-a", "tie-b", "late"}, identifiers(public))

	internal, err := resolver.Candidates(context.Background(), core.RepositoryTypeNPM, true)
	require.NoError(t, err)
	require.Equal(t, []string{"private"}, identifiers(internal))

	none, err := resolver.Candidates(context.Background(), core.RepositoryTypeCargo, false)
	require.NoError(t, err)
	require.Empty(t, none)
}

type failingProvider struct{}

func (failingProvider) RepositoriesByTypeEnabled(ctx context.Context, repoType core.RepositoryType) ([]core.Repository, error) {
	return nil, errors.New("database unavailable")
}

func TestCandidatesProviderError(t *testing.T) {
	resolver := &Resolver{Provider: failingProvider{}}
	_, err := resolver.Candidates(context.Background(), core.RepositoryTypeNPM, false)
	require.ErrorContains(t, err, "database unavailable")
}

func TestParseRepositoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repositories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repositories:
  - type: npm
    identifier: npmjs
    url: https://registry.npmjs.org
    enabled: true
    resolution_order: 2
  - type: NPM
    identifier: internal
    url: https://npm.corp.example
    enabled: true
    internal: true
    authentication_required: true
    username: ci
    password: c2VjcmV0
    resolution_order: 1
`), 0o600))

	provider, err := NewFileProvider(path)
	require.NoError(t, err)

	repos, err := provider.RepositoriesByTypeEnabled(context.Background(), core.RepositoryTypeNPM)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	require.Equal(t, "ci", repos[1].Username)
	require.Equal(t, "c2VjcmV0", repos[1].Password)
	require.True(t, repos[1].AuthenticationRequired)
}

func TestParseRepositoryFileInvalid(t *testing.T) {
	_, err := Parse([]byte(`
repositories:
  - type: rubygems
    identifier: x
    url: https://rubygems.org
  - type: GEM
    identifier: ""
    url: https://rubygems.org
  - type: GEM
    identifier: gems
    url: not a url
`))
	require.Error(t, err)
	require.ErrorContains(t, err, "repositories[0]")
	require.ErrorContains(t, err, "repositories[1]")
	require.ErrorContains(t, err, "repositories[2]")

	_, err = Parse([]byte(`
repositories:
  - {type: GEM, identifier: gems, url: "https://rubygems.org"}
  - {type: GEM, identifier: gems, url: "https://mirror.example"}
`))
	require.ErrorContains(t, err, "duplicate identifier")
}
