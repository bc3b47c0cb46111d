package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
)

// GemAnalyzer resolves metadata from the RubyGems API.
type GemAnalyzer struct {
	Base
}

type gemVersion struct {
	Number     string `json:"number"`
	Prerelease bool   `json:"prerelease"`
	CreatedAt  string `json:"created_at"`
	Platform   string `json:"platform"`
	SHA        string `json:"sha"`
}

// Type returns the analyzer ecosystem.
func (a *GemAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeGem
}

// IsApplicable returns true for gems.
func (a *GemAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "gem" && strings.TrimSpace(ref.Name) != ""
}

// FetchLatestVersion takes the newest non-prerelease entry; the API lists
// versions newest first.
func (a *GemAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	versions, err := a.versions(ctx, repo, ref, cred)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Prerelease || v.Number == "" {
			continue
		}
		return &core.MetaModel{LatestVersion: v.Number, PublishedTimestamp: parseTime(v.CreatedAt)}, nil
	}
	return nil, nil
}

// FetchIntegrity returns the sha256 of the matching ruby-platform gem.
func (a *GemAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	versions, err := a.versions(ctx, repo, ref, cred)
	if err != nil {
		return nil, err
	}

	platform := ref.Qualifier("platform")
	if platform == "" {
		platform = "ruby"
	}
	for _, v := range versions {
		if v.Number != ref.Version || v.SHA == "" {
			continue
		}
		if v.Platform != "" && v.Platform != platform {
			continue
		}
		return &core.IntegrityMeta{SHA256: v.SHA, MetaSourceURL: gemVersionsURL(repo, ref)}, nil
	}
	return nil, nil
}

func (a *GemAnalyzer) versions(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) ([]gemVersion, error) {
	var versions []gemVersion
	found, err := a.getJSON(ctx, gemVersionsURL(repo, ref), cred, &versions)
	if err != nil || !found {
		return nil, err
	}
	return versions, nil
}

func gemVersionsURL(repo core.Repository, ref core.PackageRef) string {
	return joinURL(repo.URL, "api", "v1", "versions", url.PathEscape(ref.Name)+".json")
}
