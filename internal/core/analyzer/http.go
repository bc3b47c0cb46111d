package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkgmeta/repometa/internal/core"
)

const (
	defaultUserAgent = "repometa"
	maxBodyBytes     = 32 << 20
	maxTextBytes     = 1 << 20
)

// Base carries the HTTP plumbing shared by all analyzers.
type Base struct {
	Client    *http.Client
	UserAgent string
}

// defaultClient has no client-level timeout; callers bound each request with
// their context deadline.
var defaultClient = &http.Client{}

func (b Base) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return defaultClient
}

func (b Base) userAgent() string {
	if strings.TrimSpace(b.UserAgent) != "" {
		return b.UserAgent
	}
	return defaultUserAgent
}

// do issues a request and returns the response only for 2xx. A 404 yields a
// nil response and nil error; other statuses yield a *StatusError.
func (b Base) do(ctx context.Context, method, rawURL string, cred *Credential, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.userAgent())
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	applyCredential(req, cred)

	resp, err := b.client().Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
		return nil, nil
	default:
		wait := retryAfterHeader(resp)
		resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, RetryAfter: wait}
	}
}

// getJSON decodes a JSON document into out. found is false when the registry
// reports no such document or the body is empty.
func (b Base) getJSON(ctx context.Context, rawURL string, cred *Credential, out any) (bool, error) {
	resp, err := b.do(ctx, http.MethodGet, rawURL, cred, "application/json")
	if err != nil || resp == nil {
		return false, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// getBody reads a small response body.
func (b Base) getBody(ctx context.Context, rawURL string, cred *Credential, accept string, limit int64) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, rawURL, cred, accept)
	if err != nil || resp == nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// head returns the response headers of a HEAD request, or nil when absent.
func (b Base) head(ctx context.Context, rawURL string, cred *Credential) (http.Header, error) {
	resp, err := b.do(ctx, http.MethodHead, rawURL, cred, "")
	if err != nil || resp == nil {
		return nil, err
	}
	resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
	return resp.Header, nil
}

func applyCredential(req *http.Request, cred *Credential) {
	if cred == nil {
		return
	}
	switch {
	case cred.Username != "":
		req.SetBasicAuth(cred.Username, cred.Password)
	case cred.Password != "":
		req.Header.Set("Authorization", "Bearer "+cred.Password)
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}

// checksumHeaders reads the X-Checksum-* headers served by npm and Maven
// repository managers.
func checksumHeaders(header http.Header, sourceURL string) *core.IntegrityMeta {
	if header == nil {
		return nil
	}
	meta := &core.IntegrityMeta{
		MD5:           strings.TrimSpace(header.Get("X-Checksum-MD5")),
		SHA1:          strings.TrimSpace(header.Get("X-Checksum-SHA1")),
		SHA256:        strings.TrimSpace(header.Get("X-Checksum-SHA256")),
		SHA512:        strings.TrimSpace(header.Get("X-Checksum-SHA512")),
		MetaSourceURL: sourceURL,
	}
	if meta.IsEmpty() {
		return nil
	}
	return meta
}

func joinURL(base string, segments ...string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.Join(segments, "/")
}

func parseTime(value string, layouts ...string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339Nano, time.RFC3339}
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
