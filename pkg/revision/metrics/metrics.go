package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RevisionsEmitted  prometheus.Counter
	EntitiesCaptured  prometheus.Counter
	ScopesInvalidated prometheus.Counter
	OpenScopeDepth    prometheus.Gauge
}

// New registers the scope metrics with reg, falling back to the default
// registerer when reg is nil. Register once per process.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RevisionsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_revisions_emitted_total",
			Help: "Total number of revisions emitted by closing scopes",
		}),
		EntitiesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_entities_captured_total",
			Help: "Total number of entity captures recorded into scopes",
		}),
		ScopesInvalidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_scopes_invalidated_total",
			Help: "Total number of scopes invalidated by errors or panics",
		}),
		OpenScopeDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_open_scope_depth",
			Help: "Current nesting depth of the most recently active scope stack",
		}),
	}
}

func (m *Metrics) RevisionEmitted() {
	m.RevisionsEmitted.Inc()
}

func (m *Metrics) EntityCaptured() {
	m.EntitiesCaptured.Inc()
}

func (m *Metrics) ScopeInvalidated() {
	m.ScopesInvalidated.Inc()
}

func (m *Metrics) SetOpenDepth(depth int) {
	m.OpenScopeDepth.Set(float64(depth))
}
