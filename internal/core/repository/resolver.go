package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkgmeta/repometa/internal/core"
)

// Provider supplies repository configuration.
type Provider interface {
	RepositoriesByTypeEnabled(ctx context.Context, repoType core.RepositoryType) ([]core.Repository, error)
}

// Resolver selects the ordered candidate repositories for a component.
type Resolver struct {
	Provider Provider
}

// Candidates returns enabled repositories of repoType whose visibility matches
// internal, ordered by ascending resolution order. Ties keep provider order.
func (r *Resolver) Candidates(ctx context.Context, repoType core.RepositoryType, internal bool) ([]core.Repository, error) {
	if r == nil || r.Provider == nil {
		return nil, nil
	}

	all, err := r.Provider.RepositoriesByTypeEnabled(ctx, repoType)
	if err != nil {
		return nil, fmt.Errorf("load %s repositories: %w", repoType, err)
	}

	return Filter(all, repoType, internal), nil
}

// Filter applies the candidate rules to a snapshot.
func Filter(all []core.Repository, repoType core.RepositoryType, internal bool) []core.Repository {
	candidates := make([]core.Repository, 0, len(all))
	for _, repo := range all {
		if !repo.Enabled || repo.Type != repoType || repo.Internal != internal {
			continue
		}
		candidates = append(candidates, repo)
	}

	SortByResolutionOrder(candidates)
	return candidates
}

// SortByResolutionOrder orders repos by ascending resolution order, keeping
// the existing order for ties.
func SortByResolutionOrder(repos []core.Repository) {
	sort.SliceStable(repos, func(i, j int) bool {
		return repos[i].ResolutionOrder < repos[j].ResolutionOrder
	})
}
