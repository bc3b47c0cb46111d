package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pkgmeta/repometa/internal/core"
)

// ComposerAnalyzer resolves metadata from a Composer v2 (p2) repository.
type ComposerAnalyzer struct {
	Base
}

type composerVersion struct {
	Version string `json:"version"`
	Time    string `json:"time"`
	Dist    *struct {
		URL    string `json:"url"`
		Shasum string `json:"shasum"`
	} `json:"dist"`
}

// Type returns the analyzer ecosystem.
func (a *ComposerAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeComposer
}

// IsApplicable requires a vendor namespace.
func (a *ComposerAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "composer" && ref.Namespace != "" && ref.Name != ""
}

// FetchLatestVersion picks the highest stable version.
func (a *ComposerAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	versions, err := a.versions(ctx, repo, ref, cred)
	if err != nil || len(versions) == 0 {
		return nil, err
	}

	var (
		best      *semver.Version
		bestEntry composerVersion
	)
	for _, entry := range versions {
		if strings.Contains(strings.ToLower(entry.Version), "dev") {
			continue
		}
		v, err := semver.NewVersion(entry.Version)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestEntry = entry
		}
	}
	if best == nil {
		return nil, nil
	}
	return &core.MetaModel{LatestVersion: bestEntry.Version, PublishedTimestamp: parseTime(bestEntry.Time)}, nil
}

// FetchIntegrity returns the dist sha1 when the repository publishes one.
func (a *ComposerAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	versions, err := a.versions(ctx, repo, ref, cred)
	if err != nil {
		return nil, err
	}
	want := strings.TrimPrefix(ref.Version, "v")
	for _, entry := range versions {
		if strings.TrimPrefix(entry.Version, "v") != want {
			continue
		}
		if entry.Dist == nil || entry.Dist.Shasum == "" {
			return nil, nil
		}
		return &core.IntegrityMeta{SHA1: entry.Dist.Shasum, MetaSourceURL: composerURL(repo, ref)}, nil
	}
	return nil, nil
}

func (a *ComposerAnalyzer) versions(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) ([]composerVersion, error) {
	var payload struct {
		Packages map[string][]composerVersion `json:"packages"`
	}
	found, err := a.getJSON(ctx, composerURL(repo, ref), cred, &payload)
	if err != nil || !found {
		return nil, err
	}
	return payload.Packages[composerName(ref)], nil
}

func composerName(ref core.PackageRef) string {
	return strings.ToLower(ref.Namespace + "/" + ref.Name)
}

func composerURL(repo core.Repository, ref core.PackageRef) string {
	return joinURL(repo.URL, "p2", url.PathEscape(strings.ToLower(ref.Namespace)), url.PathEscape(strings.ToLower(ref.Name))+".json")
}
