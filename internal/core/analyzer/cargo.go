package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
)

// CargoAnalyzer resolves metadata from the crates.io API.
type CargoAnalyzer struct {
	Base
}

// Type returns the analyzer ecosystem.
func (a *CargoAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeCargo
}

// IsApplicable returns true for cargo crates.
func (a *CargoAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "cargo" && strings.TrimSpace(ref.Name) != ""
}

// FetchLatestVersion reads max_stable_version, falling back to max_version.
func (a *CargoAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	var payload struct {
		Crate struct {
			MaxStableVersion string `json:"max_stable_version"`
			MaxVersion       string `json:"max_version"`
			UpdatedAt        string `json:"updated_at"`
		} `json:"crate"`
		Versions []struct {
			Num       string `json:"num"`
			CreatedAt string `json:"created_at"`
		} `json:"versions"`
	}
	found, err := a.getJSON(ctx, joinURL(repo.URL, "api", "v1", "crates", url.PathEscape(ref.Name)), cred, &payload)
	if err != nil || !found {
		return nil, err
	}

	latest := payload.Crate.MaxStableVersion
	if latest == "" {
		latest = payload.Crate.MaxVersion
	}
	if latest == "" {
		return nil, nil
	}

	model := &core.MetaModel{LatestVersion: latest}
	for _, v := range payload.Versions {
		if v.Num == latest {
			model.PublishedTimestamp = parseTime(v.CreatedAt)
			break
		}
	}
	return model, nil
}

// FetchIntegrity reads the sha256 checksum of the crate archive.
func (a *CargoAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	source := joinURL(repo.URL, "api", "v1", "crates", url.PathEscape(ref.Name), url.PathEscape(ref.Version))

	var payload struct {
		Version struct {
			Checksum string `json:"checksum"`
		} `json:"version"`
	}
	found, err := a.getJSON(ctx, source, cred, &payload)
	if err != nil || !found || payload.Version.Checksum == "" {
		return nil, err
	}
	return &core.IntegrityMeta{SHA256: payload.Version.Checksum, MetaSourceURL: source}, nil
}
