package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkgmeta/repometa/internal/core"
)

const repositoryColumns = `type, identifier, url, enabled, internal, authentication_required,
		username, password, resolution_order`

// RepositoriesByTypeEnabled returns enabled repositories of repoType in
// resolution order.
func (s *Store) RepositoriesByTypeEnabled(ctx context.Context, repoType core.RepositoryType) ([]core.Repository, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	return s.queryRepositories(ctx, `
		SELECT `+repositoryColumns+`
		FROM repositories
		WHERE type = ? AND enabled = 1
		ORDER BY resolution_order, identifier
	`, string(repoType))
}

// ListRepositories returns every repository, optionally limited to one type.
func (s *Store) ListRepositories(ctx context.Context, repoType core.RepositoryType) ([]core.Repository, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if repoType == "" {
		return s.queryRepositories(ctx, `
			SELECT `+repositoryColumns+`
			FROM repositories
			ORDER BY type, resolution_order, identifier
		`)
	}
	return s.queryRepositories(ctx, `
		SELECT `+repositoryColumns+`
		FROM repositories
		WHERE type = ?
		ORDER BY resolution_order, identifier
	`, string(repoType))
}

// UpsertRepository inserts or replaces a repository keyed by type and identifier.
func (s *Store) UpsertRepository(ctx context.Context, repo core.Repository, now time.Time) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return upsertRepository(ctx, s.DB, repo, now)
}

// ImportRepositories upserts repos in a single transaction.
func (s *Store) ImportRepositories(ctx context.Context, repos []core.Repository, now time.Time) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	for _, repo := range repos {
		if err := upsertRepository(ctx, tx, repo, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// DeleteRepository removes a repository and reports whether it existed.
func (s *Store) DeleteRepository(ctx context.Context, repoType core.RepositoryType, identifier string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errNotInitialized
	}
	result, err := s.DB.ExecContext(ctx, `DELETE FROM repositories WHERE type = ? AND identifier = ?`,
		string(repoType), strings.TrimSpace(identifier))
	if err != nil {
		return false, fmt.Errorf("delete repository: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete repository: %w", err)
	}
	return affected > 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRepository(ctx context.Context, db execer, repo core.Repository, now time.Time) error {
	identifier := strings.TrimSpace(repo.Identifier)
	if repo.Type == "" || identifier == "" {
		return errors.New("repository type and identifier are required")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO repositories (`+repositoryColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, identifier) DO UPDATE SET
			url = excluded.url,
			enabled = excluded.enabled,
			internal = excluded.internal,
			authentication_required = excluded.authentication_required,
			username = excluded.username,
			password = excluded.password,
			resolution_order = excluded.resolution_order,
			updated_at = excluded.updated_at
	`, string(repo.Type), identifier, strings.TrimSpace(repo.URL),
		boolInt(repo.Enabled), boolInt(repo.Internal), boolInt(repo.AuthenticationRequired),
		nullString(repo.Username), nullString(repo.Password), repo.ResolutionOrder, now.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store repository %s/%s: %w", repo.Type, identifier, err)
	}
	return nil
}

func (s *Store) queryRepositories(ctx context.Context, query string, args ...any) ([]core.Repository, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	repos := []core.Repository{}
	for rows.Next() {
		var (
			repo                            core.Repository
			repoType                        string
			enabled, internal, authRequired int
			username, password              sql.NullString
		)
		if err := rows.Scan(&repoType, &repo.Identifier, &repo.URL, &enabled, &internal, &authRequired,
			&username, &password, &repo.ResolutionOrder); err != nil {
			return nil, fmt.Errorf("scan repositories: %w", err)
		}
		repo.Type = core.RepositoryType(repoType)
		repo.Enabled = enabled != 0
		repo.Internal = internal != 0
		repo.AuthenticationRequired = authRequired != 0
		repo.Username = username.String
		repo.Password = password.String
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return repos, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
