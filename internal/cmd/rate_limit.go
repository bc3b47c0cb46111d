package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/engine"
	"github.com/pkgmeta/repometa/internal/core/repository"
	"github.com/pkgmeta/repometa/internal/core/store"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage persisted per-host registry rate limit state",
	Long: `Rate limit state is kept per registry host. Repositories whose URLs
share a host share one window, so the commands below accept a repository
identifier and act on the host it resolves to.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

// hostRateLimit is the throttling state of one registry host together with
// the configured repositories it serves.
type hostRateLimit struct {
	Host          string     `json:"host"`
	Repositories  []string   `json:"repositories"`
	LimitRequests int        `json:"limit_requests,omitempty"`
	LimitWindow   string     `json:"limit_window,omitempty"`
	RequestCount  int        `json:"request_count"`
	WindowStart   *time.Time `json:"window_start,omitempty"`
	BackoffUntil  *time.Time `json:"backoff_until,omitempty"`
	Last429At     *time.Time `json:"last_429_at,omitempty"`
}

// repositoryLabel names a repository the way `repos list` does.
func repositoryLabel(repo core.Repository) string {
	return string(repo.Type) + "/" + repo.Identifier
}

// repositoriesByHost groups repository labels under their URL host.
// Repositories without a parseable host are left out.
func repositoriesByHost(repos []core.Repository) map[string][]string {
	out := make(map[string][]string)
	for _, repo := range repos {
		host := engine.RepositoryHost(repo.URL)
		if host == "" {
			continue
		}
		out[host] = append(out[host], repositoryLabel(repo))
	}
	for host := range out {
		sort.Strings(out[host])
	}
	return out
}

// joinRateLimits annotates stored rows with their repositories and the
// effective window. Hosts of configured repositories that have no stored
// state are listed idle when includeIdle is set.
func joinRateLimits(entries []store.RateLimitEntry, repos []core.Repository, limiter *engine.RateLimiter, includeIdle bool) []hostRateLimit {
	byHost := repositoriesByHost(repos)
	seen := make(map[string]bool, len(entries))
	rows := make([]hostRateLimit, 0, len(entries))

	for _, entry := range entries {
		host := strings.ToLower(entry.Endpoint)
		seen[host] = true
		row := hostRateLimit{
			Host:         host,
			Repositories: byHost[host],
			RequestCount: entry.State.RequestCount,
			BackoffUntil: entry.State.BackoffUntil,
			Last429At:    entry.State.Last429At,
		}
		if !entry.State.WindowStart.IsZero() {
			start := entry.State.WindowStart.UTC()
			row.WindowStart = &start
		}
		rows = append(rows, withLimit(row, limiter))
	}

	if includeIdle {
		for host, labels := range byHost {
			if seen[host] {
				continue
			}
			rows = append(rows, withLimit(hostRateLimit{Host: host, Repositories: labels}, limiter))
		}
	}

	for i := range rows {
		if rows[i].Repositories == nil {
			rows[i].Repositories = []string{}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })
	return rows
}

func withLimit(row hostRateLimit, limiter *engine.RateLimiter) hostRateLimit {
	if limit, ok := limiter.Limit(row.Host); ok {
		row.LimitRequests = limit.RequestsPerWindow
		row.LimitWindow = limit.WindowDuration.String()
	}
	return row
}

// hostForRepository resolves a repository identifier, optionally narrowed
// by type, to the host its rate limit state is stored under.
func hostForRepository(repos []core.Repository, identifier string, repoType core.RepositoryType) (string, error) {
	var hosts []string
	for _, repo := range repos {
		if !strings.EqualFold(repo.Identifier, identifier) {
			continue
		}
		if repoType != "" && repo.Type != repoType {
			continue
		}
		host := engine.RepositoryHost(repo.URL)
		if host == "" {
			return "", fmt.Errorf("repository %s has no host in url %q", repositoryLabel(repo), repo.URL)
		}
		hosts = append(hosts, host)
	}

	switch {
	case len(hosts) == 0:
		return "", fmt.Errorf("unknown repository: %s", identifier)
	case len(hosts) > 1 && !allEqual(hosts):
		return "", fmt.Errorf("repository %s exists for several types with different hosts; pass --type", identifier)
	}
	return hosts[0], nil
}

func allEqual(values []string) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// rateLimitScope is what the rate-limit commands read: the configured
// repositories, the limiter built from configuration and the store.
type rateLimitScope struct {
	db      *store.Store
	repos   []core.Repository
	limiter *engine.RateLimiter
}

func openRateLimitScope(ctx context.Context) (*rateLimitScope, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := openStoreWith(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repos, err := configuredRepositories(ctx, cfg, db, "")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	limiter := &engine.RateLimiter{}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)

	return &rateLimitScope{db: db, repos: repos, limiter: limiter}, nil
}

func (s *rateLimitScope) Close() error {
	return s.db.Close()
}

// query turns the --repository/--type/--host selection into a store query.
// An empty selection selects every host.
func (s *rateLimitScope) query(identifier, typeFlag, host string) (store.RateLimitQuery, error) {
	identifier = strings.TrimSpace(identifier)
	host = strings.TrimSpace(host)
	if identifier != "" && host != "" {
		return store.RateLimitQuery{}, fmt.Errorf("--repository and --host are mutually exclusive")
	}

	if identifier != "" {
		var repoType core.RepositoryType
		if strings.TrimSpace(typeFlag) != "" {
			var err error
			if repoType, err = core.ParseRepositoryType(strings.ToUpper(strings.TrimSpace(typeFlag))); err != nil {
				return store.RateLimitQuery{}, err
			}
		}
		resolved, err := hostForRepository(s.repos, identifier, repoType)
		if err != nil {
			return store.RateLimitQuery{}, err
		}
		return store.RateLimitQuery{Endpoint: resolved}, nil
	}
	if host != "" {
		return store.RateLimitQuery{Endpoint: host}, nil
	}
	return store.RateLimitQuery{All: true}, nil
}

// configuredRepositories returns the repositories the resolver would use,
// from the YAML file or the store depending on configuration.
func configuredRepositories(ctx context.Context, cfg *config.Config, db *store.Store, repoType core.RepositoryType) ([]core.Repository, error) {
	if cfg.Repositories.Source == config.RepositorySourceFile {
		all, err := repository.LoadFile(cfg.Repositories.File)
		if err != nil {
			return nil, err
		}
		var repos []core.Repository
		for _, repo := range all {
			if repoType == "" || repo.Type == repoType {
				repos = append(repos, repo)
			}
		}
		repository.SortByResolutionOrder(repos)
		return repos, nil
	}
	return db.ListRepositories(ctx, repoType)
}
