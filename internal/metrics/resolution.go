package metrics

import (
	"time"

	"github.com/pkgmeta/repometa/internal/observability"
)

// Resolution metrics
const (
	CacheLookupsTotal     = "cache_lookups_total"
	AnalyzerCallsTotal    = "analyzer_calls_total"
	AnalyzerCallDuration  = "analyzer_call_duration_ms"
	ResolutionDuration    = "resolution_duration_ms"
	RecordsProcessedTotal = "records_processed_total"
	CacheEntries          = "cache_entries"
)

// Analyzer call outcomes
const (
	OutcomeData        = "data"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeUnsupported = "unsupported"
	OutcomeThrottled   = "throttled"
)

// RecordCacheLookup records a result cache hit or miss.
func RecordCacheLookup(repoType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheLookupsTotal,
			1,
			map[string]string{
				"type":   repoType,
				"result": result,
			},
		)
	}
}

// RecordAnalyzerCall records a single registry call.
func RecordAnalyzerCall(repoType, capability, repository, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		AnalyzerCallsTotal,
		1,
		map[string]string{
			"type":       repoType,
			"capability": capability,
			"repository": repository,
			"outcome":    outcome,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		AnalyzerCallDuration,
		duration,
		map[string]string{
			"type":       repoType,
			"capability": capability,
		},
	)
}

// RecordResolution records the time taken to resolve one component.
func RecordResolution(repoType string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			ResolutionDuration,
			duration,
			map[string]string{
				"type": repoType,
			},
		)
	}
}

// RecordProcessed records the outcome of one processed command.
func RecordProcessed(purlType, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RecordsProcessedTotal,
			1,
			map[string]string{
				"type":    purlType,
				"outcome": outcome,
			},
		)
	}
}

// SetCacheEntries reports the current result cache size.
func SetCacheEntries(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			CacheEntries,
			float64(count),
			nil,
		)
	}
}
