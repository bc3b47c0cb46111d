package analyzer

import (
	"context"
	"strings"

	"golang.org/x/mod/module"

	"github.com/pkgmeta/repometa/internal/core"
)

// GoModulesAnalyzer resolves metadata from a GOPROXY endpoint.
type GoModulesAnalyzer struct {
	Base
}

type goProxyInfo struct {
	Version string `json:"Version"`
	Time    string `json:"Time"`
}

// Type returns the analyzer ecosystem.
func (a *GoModulesAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeGoModules
}

// IsApplicable returns true for golang packages with a valid module path.
func (a *GoModulesAnalyzer) IsApplicable(ref core.PackageRef) bool {
	if ref.Type != "golang" || ref.Name == "" {
		return false
	}
	_, err := module.EscapePath(goModulePath(ref))
	return err == nil
}

// FetchLatestVersion queries @latest and falls back to the highest tagged
// version from @v/list.
func (a *GoModulesAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	escaped, err := module.EscapePath(goModulePath(ref))
	if err != nil {
		return nil, err
	}

	var info goProxyInfo
	found, err := a.getJSON(ctx, joinURL(repo.URL, escaped, "@latest"), cred, &info)
	if err != nil {
		return nil, err
	}
	if found && info.Version != "" {
		return &core.MetaModel{LatestVersion: info.Version, PublishedTimestamp: parseTime(info.Time)}, nil
	}

	body, err := a.getBody(ctx, joinURL(repo.URL, escaped, "@v", "list"), cred, "text/plain", maxTextBytes)
	if err != nil {
		return nil, err
	}
	latest := highestSemver(strings.Fields(string(body)), false)
	if latest == "" {
		return nil, nil
	}

	model := &core.MetaModel{LatestVersion: latest}
	if escapedVersion, err := module.EscapeVersion(latest); err == nil {
		var detail goProxyInfo
		if ok, err := a.getJSON(ctx, joinURL(repo.URL, escaped, "@v", escapedVersion+".info"), cred, &detail); err == nil && ok {
			model.PublishedTimestamp = parseTime(detail.Time)
		}
	}
	return model, nil
}

// FetchIntegrity is not offered by module proxies in a checksum form we report.
func (a *GoModulesAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	return nil, ErrNotSupported
}

func goModulePath(ref core.PackageRef) string {
	if ref.Namespace == "" {
		return ref.Name
	}
	return ref.Namespace + "/" + ref.Name
}
