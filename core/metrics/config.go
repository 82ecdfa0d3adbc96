package metrics

import "github.com/kilianp07/emsplanner/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	EmissionFactor float64                `json:"emission_factor"`
	// PrometheusAddr, when non-empty, starts an HTTP server exposing a
	// "/metrics" scrape endpoint on this address (e.g. ":9090"). Only
	// meaningful alongside a "prometheus" sink.
	PrometheusAddr string `json:"prometheus_addr,omitempty"`
}
