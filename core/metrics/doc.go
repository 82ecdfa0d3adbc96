// Package metrics defines the interfaces for recording planning-cycle
// outcomes. Sinks like the Prometheus and InfluxDB adapters in
// infra/metrics record plan results, per-slot economics, and infeasible
// cycles, and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
package metrics
