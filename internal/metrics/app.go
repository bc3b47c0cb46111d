package metrics

import (
	"time"

	"github.com/pkgmeta/repometa/internal/observability"
)

// Service lifecycle and admin metrics
const (
	HealthCheckTotal      = "health_check_total"
	HealthCheckDuration   = "health_check_duration_ms"
	ServerStartTime       = "server_start_time_seconds"
	AdminOperationsTotal  = "admin_operations_total"
	CacheInvalidatedTotal = "cache_invalidated_entries_total"
)

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// RecordAdminOperation records an admin endpoint or command invocation.
func RecordAdminOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AdminOperationsTotal,
			1,
			map[string]string{
				"operation": operation,
				"status":    status,
			},
		)
	}
}

// RecordCacheInvalidated records how many cache entries an invalidation dropped.
func RecordCacheInvalidated(entries int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheInvalidatedTotal,
			float64(entries),
			nil,
		)
	}
}
