package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/pkgmeta/repometa/internal/metrics"
)

// BearerToken rejects requests whose Authorization header does not carry
// token. An empty token rejects everything.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
				envelope := errors.NewErrorEnvelope("UNAUTHORIZED", "missing or invalid bearer token").
					WithCorrelationID(GetRequestID(r.Context()))
				metrics.RecordAdminOperation(r.URL.Path, false)
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeEnvelope(w, envelope, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
