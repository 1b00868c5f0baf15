// Package metrics holds the process-wide Prometheus registry. It is
// initialized once at boot and is append-only thereafter; workers hold
// cloneable handles into it via RegistersMetrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistersMetrics is implemented by every worker and adapter that exports
// Prometheus collectors. Registration happens once, during process setup.
type RegistersMetrics interface {
	RegisterMetrics(registry *prometheus.Registry)
}

// NewRegistry returns a fresh registry pre-populated with the default Go and
// process collectors, matching the convention used across this pack's
// Prometheus-instrumented services.
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return r
}
