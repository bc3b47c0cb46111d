package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
)

// NuGetAnalyzer resolves metadata from a NuGet v3 flat container.
type NuGetAnalyzer struct {
	Base
}

// Type returns the analyzer ecosystem.
func (a *NuGetAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeNuGet
}

// IsApplicable returns true for nuget packages.
func (a *NuGetAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "nuget" && strings.TrimSpace(ref.Name) != ""
}

// FetchLatestVersion picks the highest stable version from the package index.
func (a *NuGetAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	id := url.PathEscape(strings.ToLower(ref.Name))

	var payload struct {
		Versions []string `json:"versions"`
	}
	found, err := a.getJSON(ctx, joinURL(repo.URL, "v3-flatcontainer", id, "index.json"), cred, &payload)
	if err != nil || !found {
		return nil, err
	}

	latest := highestSemver(payload.Versions, false)
	if latest == "" {
		return nil, nil
	}
	return &core.MetaModel{LatestVersion: latest}, nil
}

// FetchIntegrity is not supported for NuGet.
func (a *NuGetAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	return nil, ErrNotSupported
}
