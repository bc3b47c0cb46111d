package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkgmeta/repometa/internal/core"
)

// ErrNotSupported is returned when an analyzer does not implement a capability.
var ErrNotSupported = errors.New("capability not supported")

// Analyzer fetches metadata for one ecosystem. Both fetch operations return
// nil with a nil error when the registry has no data for the package.
type Analyzer interface {
	// Type returns the ecosystem this analyzer serves.
	Type() core.RepositoryType

	// IsApplicable returns true if the analyzer can handle the package.
	IsApplicable(ref core.PackageRef) bool

	// FetchLatestVersion resolves the newest release and its publish time.
	FetchLatestVersion(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.MetaModel, error)

	// FetchIntegrity resolves checksums for the package's own version.
	FetchIntegrity(ctx context.Context, repo core.Repository, ref core.PackageRef, cred *Credential) (*core.IntegrityMeta, error)
}

// Credential holds decrypted repository credentials for a single call.
type Credential struct {
	Username string
	Password string
}

// StatusError reports a non-success registry response.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 429 {
		return statusErr, true
	}
	return nil, false
}
