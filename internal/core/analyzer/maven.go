package analyzer

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pkgmeta/repometa/internal/core"
)

const mavenLastUpdatedLayout = "20060102150405"

// MavenAnalyzer resolves metadata from Maven 2 layout repositories.
type MavenAnalyzer struct {
	Base
}

type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest      string   `xml:"latest"`
		Release     string   `xml:"release"`
		Versions    []string `xml:"versions>version"`
		LastUpdated string   `xml:"lastUpdated"`
	} `xml:"versioning"`
}

// Type returns the analyzer ecosystem.
func (a *MavenAnalyzer) Type() core.RepositoryType {
	return core.RepositoryTypeMaven
}

// IsApplicable requires both group and artifact id.
func (a *MavenAnalyzer) IsApplicable(ref core.PackageRef) bool {
	return ref.Type == "maven" && ref.Namespace != "" && ref.Name != ""
}

// FetchLatestVersion reads maven-metadata.xml and takes the release, then the
// latest marker, then the highest listed version.
func (a *MavenAnalyzer) FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error) {
	body, err := a.getBody(ctx, joinURL(repo.URL, mavenGroupPath(ref), ref.Name, "maven-metadata.xml"), cred, "application/xml", maxBodyBytes)
	if err != nil || len(body) == 0 {
		return nil, err
	}

	var meta mavenMetadata
	if err := xml.Unmarshal(body, &meta); err != nil {
		return nil, err
	}

	latest := strings.TrimSpace(meta.Versioning.Release)
	if latest == "" {
		latest = strings.TrimSpace(meta.Versioning.Latest)
	}
	if latest == "" {
		latest = highestSemver(meta.Versioning.Versions, false)
	}
	if latest == "" {
		return nil, nil
	}

	model := &core.MetaModel{LatestVersion: latest}
	if header, err := a.head(ctx, mavenFileURL(repo.URL, ref, latest, "pom", ""), cred); err == nil && header != nil {
		if ts, err := http.ParseTime(header.Get("Last-Modified")); err == nil {
			ts = ts.UTC()
			model.PublishedTimestamp = &ts
		}
	}
	if model.PublishedTimestamp == nil {
		model.PublishedTimestamp = parseTime(meta.Versioning.LastUpdated, mavenLastUpdatedLayout)
	}
	return model, nil
}

// FetchIntegrity prefers repository manager checksum headers and falls back
// to the .sha1 and .md5 sidecar files.
func (a *MavenAnalyzer) FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error) {
	if ref.Version == "" {
		return nil, nil
	}
	packaging := ref.Qualifier("type")
	if packaging == "" {
		packaging = "jar"
	}
	artifact := mavenFileURL(repo.URL, ref, ref.Version, packaging, ref.Qualifier("classifier"))

	header, err := a.head(ctx, artifact, cred)
	if err != nil || header == nil {
		return nil, err
	}
	if meta := checksumHeaders(header, artifact); meta != nil {
		return meta, nil
	}

	meta := &core.IntegrityMeta{MetaSourceURL: artifact}
	sha1, err := a.getBody(ctx, artifact+".sha1", cred, "", maxTextBytes)
	if err != nil {
		return nil, err
	}
	meta.SHA1 = firstField(sha1)

	md5, err := a.getBody(ctx, artifact+".md5", cred, "", maxTextBytes)
	if err != nil {
		return nil, err
	}
	meta.MD5 = firstField(md5)

	if meta.IsEmpty() {
		return nil, nil
	}
	return meta, nil
}

func mavenGroupPath(ref core.PackageRef) string {
	return strings.ReplaceAll(ref.Namespace, ".", "/")
}

func mavenFileURL(base string, ref core.PackageRef, version, extension, classifier string) string {
	file := ref.Name + "-" + version
	if classifier != "" {
		file += "-" + classifier
	}
	return joinURL(base, mavenGroupPath(ref), ref.Name, version, file+"."+extension)
}

// firstField returns the checksum from a sidecar file, which may carry a
// trailing file name.
func firstField(body []byte) string {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// highestSemver returns the highest parseable version, skipping pre-releases
// unless allowPre is set or nothing else parses.
func highestSemver(versions []string, allowPre bool) string {
	var best, bestPre *semver.Version
	for _, raw := range versions {
		v, err := semver.NewVersion(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if v.Prerelease() != "" && !allowPre {
			if bestPre == nil || v.GreaterThan(bestPre) {
				bestPre = v
			}
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		best = bestPre
	}
	if best == nil {
		return ""
	}
	return best.Original()
}
