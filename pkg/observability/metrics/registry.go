// Package metrics exposes recordbench's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry manages Prometheus metrics registration and exposure.
// Each Registry owns its record operation collectors, so two registries never share state.
type Registry struct {
	registry *prometheus.Registry
	store    *StoreMetrics
}

// NewRegistry creates a registry with the record operation collectors and the
// Go runtime and process collectors already registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	store := NewStoreMetrics()

	reg.MustRegister(store.collectors()...)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry: reg,
		store:    store,
	}
}

// Store returns the record operation collectors of this registry.
func (r *Registry) Store() *StoreMetrics {
	return r.store
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

// Unregister removes a collector from the registry.
func (r *Registry) Unregister(collector prometheus.Collector) bool {
	return r.registry.Unregister(collector)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
//	mux.Handle("/metrics", registry.Handler())
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
