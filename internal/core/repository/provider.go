package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pkgmeta/repometa/internal/core"
)

// StaticProvider serves a fixed snapshot.
type StaticProvider struct {
	mu    sync.RWMutex
	repos []core.Repository
}

// NewStaticProvider copies repos into a provider.
func NewStaticProvider(repos ...core.Repository) *StaticProvider {
	p := &StaticProvider{}
	p.Replace(repos)
	return p
}

// Replace swaps the snapshot atomically.
func (p *StaticProvider) Replace(repos []core.Repository) {
	snapshot := make([]core.Repository, len(repos))
	copy(snapshot, repos)

	p.mu.Lock()
	p.repos = snapshot
	p.mu.Unlock()
}

// All returns a copy of every repository in the snapshot.
func (p *StaticProvider) All() []core.Repository {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.Repository, len(p.repos))
	copy(out, p.repos)
	return out
}

// RepositoriesByTypeEnabled returns enabled repositories of repoType.
func (p *StaticProvider) RepositoriesByTypeEnabled(ctx context.Context, repoType core.RepositoryType) ([]core.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]core.Repository, 0, len(p.repos))
	for _, repo := range p.repos {
		if repo.Enabled && repo.Type == repoType {
			out = append(out, repo)
		}
	}
	return out, nil
}

// File is the YAML document holding repository definitions.
type File struct {
	Repositories []core.Repository `yaml:"repositories"`
}

// FileProvider serves repositories read from a YAML file.
type FileProvider struct {
	*StaticProvider
	Path string
}

// NewFileProvider reads path and returns a provider over its contents.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{StaticProvider: NewStaticProvider(), Path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file; the previous snapshot stays in place on error.
func (p *FileProvider) Reload() error {
	repos, err := LoadFile(p.Path)
	if err != nil {
		return err
	}
	p.Replace(repos)
	return nil
}

// LoadFile parses and validates a repository YAML file.
func LoadFile(path string) ([]core.Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read repositories file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates repository YAML.
func Parse(data []byte) ([]core.Repository, error) {
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse repositories file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Repositories))
	var errs []error
	for i := range doc.Repositories {
		repo := &doc.Repositories[i]
		repo.Type = core.RepositoryType(strings.ToUpper(strings.TrimSpace(string(repo.Type))))
		repo.Identifier = strings.TrimSpace(repo.Identifier)
		repo.URL = strings.TrimSpace(repo.URL)

		if err := Validate(*repo); err != nil {
			errs = append(errs, fmt.Errorf("repositories[%d]: %w", i, err))
			continue
		}
		key := string(repo.Type) + "/" + repo.Identifier
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("repositories[%d]: duplicate identifier %q for %s", i, repo.Identifier, repo.Type))
			continue
		}
		seen[key] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return doc.Repositories, nil
}

// Validate checks a single repository definition.
func Validate(repo core.Repository) error {
	if _, err := core.ParseRepositoryType(string(repo.Type)); err != nil {
		return err
	}
	if repo.Identifier == "" {
		return errors.New("identifier is required")
	}
	parsed, err := url.Parse(repo.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url %q", repo.URL)
	}
	return nil
}
