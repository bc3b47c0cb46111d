package analyzer

import (
	"context"
	"regexp"
	"strings"
	"time"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/pkgmeta/repometa/internal/core"
)

var pypiNameSeparators = regexp.MustCompile(`[-_.]+`)

// PyPIAnalyzer resolves metadata from the PyPI JSON API.
type PyPIAnalyzer struct {
	Base
}

type pypiFile struct {
	PackageType string            `json:"packagetype"`
	URL         string            `json:"url"`
	UploadTime  string            `json:"upload_time_iso_8601"`
	Yanked      bool              `json:"yanked"`
	Digests     map[string]string `json:"digests"`
	MD5Digest   string            `json:"md5_digest"`
}

// Type returns the analyzer ecosystem.
func (a *PyPIAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypePyPI
}

// IsApplicable returns true for pypi packages.
func (a *PyPIAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "pypi" && strings.TrimSpace(ref.Name) != ""
}

// FetchLatestVersion uses info.version, falling back to the highest
// non-yanked final release by PEP 440 ordering.
func (a *PyPIAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	var payload struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
		Releases map[string][]pypiFile `json:"releases"`
	}
	found, err := a.getJSON(ctx, joinURL(repo.URL, "pypi", pypiName(ref.Name), "json"), cred, &payload)
	if err != nil || !found {
		return nil, err
	}

	latest := strings.TrimSpace(payload.Info.Version)
	if latest == "" {
		latest = highestPEP440(payload.Releases)
	}
	if latest == "" {
		return nil, nil
	}

	return &core.MetaModel{
		LatestVersion:      latest,
		PublishedTimestamp: earliestUpload(payload.Releases[latest]),
	}, nil
}

// FetchIntegrity reads digests of the release's sdist, or its first file.
func (a *PyPIAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	source := joinURL(repo.URL, "pypi", pypiName(ref.Name), ref.Version, "json")

	var payload struct {
		URLs []pypiFile `json:"urls"`
	}
	found, err := a.getJSON(ctx, source, cred, &payload)
	if err != nil || !found || len(payload.URLs) == 0 {
		return nil, err
	}

	file := payload.URLs[0]
	for _, candidate := range payload.URLs {
		if candidate.PackageType == "sdist" {
			file = candidate
			break
		}
	}

	meta := &core.IntegrityMeta{
		MD5:           file.Digests["md5"],
		SHA256:        file.Digests["sha256"],
		MetaSourceURL: source,
	}
	if meta.MD5 == "" {
		meta.MD5 = file.MD5Digest
	}
	if meta.IsEmpty() {
		return nil, nil
	}
	return meta, nil
}

// pypiName normalizes a project name per PEP 503.
func pypiName(name string) string {
	return pypiNameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

func highestPEP440(releases map[string][]pypiFile) string {
	var (
		best    pep440.Version
		bestRaw string
	)
	for raw, files := range releases {
		if len(files) == 0 || allYanked(files) {
			continue
		}
		v, err := pep440.Parse(raw)
		if err != nil || v.IsPreRelease() {
			continue
		}
		if bestRaw == "" || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	return bestRaw
}

func allYanked(files []pypiFile) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}

func earliestUpload(files []pypiFile) *time.Time {
	var earliest *time.Time
	for _, f := range files {
		ts := parseTime(f.UploadTime)
		if ts == nil {
			continue
		}
		if earliest == nil || ts.Before(*earliest) {
			earliest = ts
		}
	}
	return earliest
}
