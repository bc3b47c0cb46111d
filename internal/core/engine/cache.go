package engine

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pkgmeta/repometa/internal/core"
)

// DefaultCacheTTL applies when no TTL is configured.
const DefaultCacheTTL = time.Hour

// ResultCache holds resolution outcomes for a fixed TTL.
type ResultCache struct {
	lru *expirable.LRU[string, core.MetaModel]
	ttl time.Duration
}

// NewResultCache creates a cache. size <= 0 means unbounded.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if size < 0 {
		size = 0
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, core.MetaModel](size, nil, ttl),
		ttl: ttl,
	}
}

// CacheKey derives the entry key from ecosystem, canonical purl (qualifiers
// included), visibility and fetch directive.
func CacheKey(ref core.PackageRef, fetchMeta core.FetchMeta) string {
	visibility := "public"
	if ref.Internal {
		visibility = "internal"
	}
	return fmt.Sprintf("%s|%s|%s|%s", ref.RepositoryType(), ref.CanonicalPURL(), visibility, fetchMeta)
}

// Get returns a copy of a live entry.
func (c *ResultCache) Get(key string) (core.MetaModel, bool) {
	if c == nil {
		return core.MetaModel{}, false
	}
	value, ok := c.lru.Get(key)
	if !ok {
		return core.MetaModel{}, false
	}
	return value.Clone(), true
}

// Put stores an outcome; a later Put for the same key wins.
func (c *ResultCache) Put(key string, value core.MetaModel) {
	if c == nil {
		return
	}
	c.lru.Add(key, value.Clone())
}

// InvalidateAll drops every entry.
func (c *ResultCache) InvalidateAll() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of entries, including ones not yet swept.
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// TTL returns the entry lifetime.
func (c *ResultCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}
