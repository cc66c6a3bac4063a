// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollreview"

// Taxonomy kinds reported by TaxonomyCreated.
const (
	KindScenario         = "scenario"
	KindTechniqueType    = "technique_type"
	KindWeaknessCategory = "weakness_category"
	KindTechnique        = "technique"
	KindDrill            = "drill"
)

// Metrics owns a private registry so that tests can build as many as they
// like. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imports         *prometheus.CounterVec
	merges          *prometheus.CounterVec
	projectionCache *prometheus.CounterVec
	taxonomyCreated *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Full-replace imports by outcome.",
		}, []string{"outcome"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Partial-patch merges by outcome.",
		}, []string{"outcome"}),
		projectionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_total",
			Help:      "Projection cache lookups by result.",
		}, []string{"result"}),
		taxonomyCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_created_total",
			Help:      "Rows created during reconciliation by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.imports,
		m.merges,
		m.projectionCache,
		m.taxonomyCreated,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ImportDone(err error) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) MergeDone(err error) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ProjectionCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.projectionCache.WithLabelValues(result).Inc()
}

// TaxonomyCreated adds n to the created counter for kind. Called once per
// committed pass with the pass totals.
func (m *Metrics) TaxonomyCreated(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.taxonomyCreated.WithLabelValues(kind).Add(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
