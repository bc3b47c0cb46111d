package observability

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsPort is assumed when the exporter address cannot be read back.
const DefaultMetricsPort = 9090

var (
	// TelemetrySystem receives every counter, gauge and histogram the service
	// records. Nil disables recording.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint that /metrics proxies to.
	PrometheusExporter *exporters.PrometheusExporter

	metricsMu   sync.Mutex
	metricsPort int
)

// ErrMetricsDisabled reports that InitMetrics has not run.
var ErrMetricsDisabled = errors.New("metrics exporter not initialized")

// InitMetrics starts the Prometheus exporter on port (0 picks a free port)
// and routes telemetry to it. Metric names are prefixed with the namespace,
// which defaults to serviceName; characters Prometheus rejects become "_".
func InitMetrics(serviceName string, port int, namespace ...string) error {
	ns := serviceName
	if len(namespace) > 0 && strings.TrimSpace(namespace[0]) != "" {
		ns = namespace[0]
	}
	ns = MetricNamespace(ns)
	if port < 0 {
		port = 0
	}

	exporter := exporters.NewPrometheusExporter(ns, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter on port %d: %w", port, err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("create telemetry system: %w", err)
	}

	bound, err := portOf(exporter.GetAddr())
	if err != nil {
		bound = port
		if bound == 0 {
			bound = DefaultMetricsPort
		}
	}

	metricsMu.Lock()
	PrometheusExporter = exporter
	TelemetrySystem = sys
	metricsPort = bound
	metricsMu.Unlock()
	return nil
}

// ShutdownMetrics stops the exporter and disables recording. Safe to call
// when metrics were never started.
func ShutdownMetrics() error {
	metricsMu.Lock()
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	metricsPort = 0
	metricsMu.Unlock()

	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// MetricsReady reports whether telemetry is recording and exported.
func MetricsReady() error {
	if TelemetrySystem == nil || PrometheusExporter == nil {
		return ErrMetricsDisabled
	}
	return nil
}

// GetMetricsPort returns the port the exporter listens on, or 0.
func GetMetricsPort() int {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsPort
}

// MetricsURL is the loopback scrape URL of the running exporter.
func MetricsURL() string {
	port := GetMetricsPort()
	if port == 0 {
		port = DefaultMetricsPort
	}
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/metrics"
}

// MetricNamespace lower-cases name and replaces anything outside
// [a-z0-9_] so it is usable as a Prometheus prefix.
func MetricNamespace(name string) string {
	var b strings.Builder
	for i, c := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "repometa"
	}
	return b.String()
}

func portOf(addr string) (int, error) {
	_, raw, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}
