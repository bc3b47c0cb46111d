package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/observability"
)

// unmatchedRoute labels requests chi could not route, keeping arbitrary
// paths out of metric labels.
const unmatchedRoute = "unmatched"

// baseLogger is the logger request logs are derived from.
var baseLogger = observability.Current

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// routeLabel returns the chi pattern that served r. Read it after the
// handler ran; chi fills the pattern while routing.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return unmatchedRoute
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// RequestMetrics records per-route request counts, latency and response
// size, and logs one line per request carrying the request's log fields.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeLabel(r)
		status := strconv.Itoa(rec.status)

		if ts := observability.TelemetrySystem; ts != nil {
			labels := map[string]string{"method": r.Method, "route": route, "status": status}
			_ = ts.Counter("http_requests_total", 1, labels)
			_ = ts.Histogram("http_request_duration_ms", elapsed, labels)
			_ = ts.Gauge("http_response_size_bytes", float64(rec.bytes), map[string]string{
				"method": r.Method,
				"route":  route,
			})
			if rec.status >= 400 {
				_ = ts.Counter("http_errors_total", 1, map[string]string{
					"method":       r.Method,
					"route":        route,
					"status_class": statusClass(rec.status),
				})
			}
		}

		observability.FromContext(r.Context(), baseLogger()).Debug("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.Int64("response_size", rec.bytes),
		)
	})
}
