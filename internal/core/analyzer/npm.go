package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
)

// NPMAnalyzer resolves metadata from npm registries.
type NPMAnalyzer struct {
	Base
}

// Type returns the analyzer ecosystem.
func (a *NPMAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeNPM
}

// IsApplicable returns true for npm packages.
func (a *NPMAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "npm" && strings.TrimSpace(ref.Name) != ""
}

// FetchLatestVersion reads the latest dist-tag.
func (a *NPMAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	escaped := strings.ReplaceAll(url.QueryEscape(npmPackageName(ref)), "+", "%20")

	var tags map[string]string
	found, err := a.getJSON(ctx, joinURL(repo.URL, "-", "package", escaped, "dist-tags"), cred, &tags)
	if err != nil || !found {
		return nil, err
	}

	latest := strings.TrimSpace(tags["latest"])
	if latest == "" {
		return nil, nil
	}
	return &core.MetaModel{LatestVersion: latest}, nil
}

// FetchIntegrity reads checksum headers from the package tarball.
func (a *NPMAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	name := npmPackageName(ref)
	tarball := joinURL(repo.URL, name, "-", name+"-"+ref.Version+".tgz")

	header, err := a.head(ctx, tarball, cred)
	if err != nil || header == nil {
		return nil, err
	}
	return checksumHeaders(header, tarball), nil
}

func npmPackageName(ref core.PackageRef) string {
	if ref.Namespace == "" {
		return ref.Name
	}
	return ref.Namespace + "/" + ref.Name
}
