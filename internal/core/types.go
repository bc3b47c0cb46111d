package core

import (
	"fmt"
	"time"
)

// RepositoryType identifies a package ecosystem served by an analyzer.
type RepositoryType string

const (
	RepositoryTypeMaven       RepositoryType = "MAVEN"
	RepositoryTypeNPM         RepositoryType = "NPM"
	RepositoryTypePyPI        RepositoryType = "PYPI"
	RepositoryTypeGoModules   RepositoryType = "GO_MODULES"
	RepositoryTypeCargo       RepositoryType = "CARGO"
	RepositoryTypeNuGet       RepositoryType = "NUGET"
	RepositoryTypeGem         RepositoryType = "GEM"
	RepositoryTypeComposer    RepositoryType = "COMPOSER"
	RepositoryTypeUnsupported RepositoryType = "UNSUPPORTED"
)

var purlTypes = map[string]RepositoryType{
	"maven":    RepositoryTypeMaven,
	"npm":      RepositoryTypeNPM,
	"pypi":     RepositoryTypePyPI,
	"golang":   RepositoryTypeGoModules,
	"cargo":    RepositoryTypeCargo,
	"nuget":    RepositoryTypeNuGet,
	"gem":      RepositoryTypeGem,
	"composer": RepositoryTypeComposer,
}

// RepositoryTypeForPURL maps a lower-cased purl type to its ecosystem.
func RepositoryTypeForPURL(purlType string) RepositoryType {
	if t, ok := purlTypes[purlType]; ok {
		return t
	}
	return RepositoryTypeUnsupported
}

// ParseRepositoryType accepts the upper-case ecosystem names used in configuration.
func ParseRepositoryType(value string) (RepositoryType, error) {
	t := RepositoryType(value)
	for _, known := range purlTypes {
		if known == t {
			return t, nil
		}
	}
	return RepositoryTypeUnsupported, fmt.Errorf("unknown repository type %q", value)
}

// RepositoryTypes lists every supported ecosystem in a stable order.
func RepositoryTypes() []RepositoryType {
	return []RepositoryType{
		RepositoryTypeMaven,
		RepositoryTypeNPM,
		RepositoryTypePyPI,
		RepositoryTypeGoModules,
		RepositoryTypeCargo,
		RepositoryTypeNuGet,
		RepositoryTypeGem,
		RepositoryTypeComposer,
	}
}

// Repository describes one configured package registry.
type Repository struct {
	Type                   RepositoryType `json:"type" yaml:"type"`
	Identifier             string         `json:"identifier" yaml:"identifier"`
	URL                    string         `json:"url" yaml:"url"`
	Enabled                bool           `json:"enabled" yaml:"enabled"`
	Internal               bool           `json:"internal" yaml:"internal"`
	AuthenticationRequired bool           `json:"authentication_required" yaml:"authentication_required"`
	Username               string         `json:"username,omitempty" yaml:"username,omitempty"`
	// Password holds the encrypted secret; it is decrypted only at call time.
	Password        string `json:"-" yaml:"password,omitempty"`
	ResolutionOrder int    `json:"resolution_order" yaml:"resolution_order"`
}

// IntegrityMeta carries the checksums a registry publishes for an artifact.
type IntegrityMeta struct {
	MD5           string `json:"md5,omitempty"`
	SHA1          string `json:"sha1,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	SHA512        string `json:"sha512,omitempty"`
	MetaSourceURL string `json:"metaSourceUrl,omitempty"`
}

// IsEmpty reports whether no checksum was found.
func (m *IntegrityMeta) IsEmpty() bool {
	return m == nil || (m.MD5 == "" && m.SHA1 == "" && m.SHA256 == "" && m.SHA512 == "")
}

// MetaModel is the merged outcome of both resolution passes.
type MetaModel struct {
	RepositoryIdentifier string         `json:"repository,omitempty"`
	LatestVersion        string         `json:"latest_version,omitempty"`
	PublishedTimestamp   *time.Time     `json:"published,omitempty"`
	Integrity            *IntegrityMeta `json:"integrity,omitempty"`
}

// IsEmpty reports whether neither pass produced data.
func (m MetaModel) IsEmpty() bool {
	return m.LatestVersion == "" && m.Integrity.IsEmpty()
}

// Clone returns a copy that shares no pointers with m.
func (m MetaModel) Clone() MetaModel {
	out := m
	if m.PublishedTimestamp != nil {
		ts := *m.PublishedTimestamp
		out.PublishedTimestamp = &ts
	}
	if m.Integrity != nil {
		integrity := *m.Integrity
		out.Integrity = &integrity
	}
	return out
}

// RateLimitState captures per-endpoint rate limiting state.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}
