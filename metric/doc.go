// Package metric provides Prometheus metrics collection for the insight bot.
//
// A single MetricsRegistry owns the Prometheus registry, the shared platform
// metrics (bus throughput, stream reconnects, analysis triggers) and any
// component-specific collectors registered under a "component.metric" key.
// The Server type exposes everything on /metrics alongside a /health probe.
package metric
