package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/package-url/packageurl-go"
)

// ErrMalformedPURL is returned when a component identifier cannot be parsed.
var ErrMalformedPURL = errors.New("malformed package url")

// FetchMeta selects which resolution passes run for a command.
type FetchMeta string

const (
	FetchMetaUnspecified                   FetchMeta = "FETCH_META_UNSPECIFIED"
	FetchMetaIntegrityData                 FetchMeta = "FETCH_META_INTEGRITY_DATA"
	FetchMetaIntegrityDataAndLatestVersion FetchMeta = "FETCH_META_INTEGRITY_DATA_AND_LATEST_VERSION"
	FetchMetaLatestVersion                 FetchMeta = "FETCH_META_LATEST_VERSION"
)

// ParseFetchMeta accepts the wire names as well as the short CLI forms
// (latest_version, integrity_data, integrity_data_and_latest_version).
func ParseFetchMeta(value string) (FetchMeta, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return FetchMetaUnspecified, nil
	}
	if !strings.HasPrefix(v, "FETCH_META_") {
		v = "FETCH_META_" + v
	}
	switch FetchMeta(v) {
	case FetchMetaUnspecified, FetchMetaIntegrityData, FetchMetaIntegrityDataAndLatestVersion, FetchMetaLatestVersion:
		return FetchMeta(v), nil
	}
	return FetchMetaUnspecified, fmt.Errorf("unknown fetch meta %q", value)
}

// UnmarshalText rejects unknown directives.
func (f *FetchMeta) UnmarshalText(text []byte) error {
	parsed, err := ParseFetchMeta(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// WantsLatestVersion reports whether the latest-version pass runs.
func (f FetchMeta) WantsLatestVersion() bool {
	return f == FetchMetaLatestVersion || f == FetchMetaIntegrityDataAndLatestVersion
}

// WantsIntegrity reports whether the integrity pass runs.
func (f FetchMeta) WantsIntegrity() bool {
	return f == FetchMetaIntegrityData || f == FetchMetaIntegrityDataAndLatestVersion
}

// Component is the wire form of a component identifier.
type Component struct {
	PURL     string `json:"purl"`
	UUID     string `json:"uuid,omitempty"`
	Internal bool   `json:"internal,omitempty"`
}

// AnalysisCommand is one inbound request.
type AnalysisCommand struct {
	Component Component `json:"component"`
	FetchMeta FetchMeta `json:"fetch_meta,omitempty"`
}

// AnalysisResult is the single outbound record emitted per command.
type AnalysisResult struct {
	Component     Component      `json:"component"`
	Repository    string         `json:"repository,omitempty"`
	LatestVersion string         `json:"latest_version,omitempty"`
	Published     *time.Time     `json:"published,omitempty"`
	IntegrityMeta *IntegrityMeta `json:"integrity_meta,omitempty"`
}

// PackageRef is a parsed, immutable component identifier.
type PackageRef struct {
	Type       string
	Namespace  string
	Name       string
	Version    string
	Qualifiers map[string]string
	Internal   bool
	UUID       string
	Raw        string
}

// ParseComponent parses the purl carried by c.
func ParseComponent(c Component) (PackageRef, error) {
	raw := strings.TrimSpace(c.PURL)
	if raw == "" {
		return PackageRef{}, fmt.Errorf("%w: empty purl", ErrMalformedPURL)
	}
	purl, err := packageurl.FromString(raw)
	if err != nil {
		return PackageRef{}, fmt.Errorf("%w: %q: %v", ErrMalformedPURL, raw, err)
	}
	if purl.Type == "" || purl.Name == "" {
		return PackageRef{}, fmt.Errorf("%w: %q: missing type or name", ErrMalformedPURL, raw)
	}
	return PackageRef{
		Type:       strings.ToLower(purl.Type),
		Namespace:  purl.Namespace,
		Name:       purl.Name,
		Version:    purl.Version,
		Qualifiers: purl.Qualifiers.Map(),
		Internal:   c.Internal,
		UUID:       c.UUID,
		Raw:        raw,
	}, nil
}

// RepositoryType returns the ecosystem this package belongs to.
func (p PackageRef) RepositoryType() RepositoryType {
	return RepositoryTypeForPURL(p.Type)
}

// CanonicalPURL renders the purl with qualifiers sorted by key and the
// subpath dropped. Qualifiers select artifacts (Maven classifier, gem
// platform), so they stay part of the identity.
func (p PackageRef) CanonicalPURL() string {
	keys := make([]string, 0, len(p.Qualifiers))
	for key := range p.Qualifiers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	qualifiers := make(packageurl.Qualifiers, 0, len(keys))
	for _, key := range keys {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: key, Value: p.Qualifiers[key]})
	}
	return packageurl.NewPackageURL(p.Type, p.Namespace, p.Name, p.Version, qualifiers, "").ToString()
}

// Qualifier returns a purl qualifier value or "".
func (p PackageRef) Qualifier(key string) string {
	if p.Qualifiers == nil {
		return ""
	}
	return p.Qualifiers[key]
}

// ResultKey identifies the outbound record.
type ResultKey struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
}

// KeyFor builds the result key for a parsed package.
func KeyFor(p PackageRef) ResultKey {
	return ResultKey{
		Type:      p.Type,
		Namespace: p.Namespace,
		Name:      p.Name,
		Version:   p.Version,
	}
}

// String renders the key as a canonical purl.
func (k ResultKey) String() string {
	return packageurl.NewPackageURL(k.Type, k.Namespace, k.Name, k.Version, nil, "").ToString()
}
