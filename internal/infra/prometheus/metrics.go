package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sifan077/PowerInvite/internal/engine/diff"
)

const namespace = "powerinvite"

// EngineMetrics records link screen activity. It satisfies screen.Metrics.
type EngineMetrics struct {
	pages     *prometheus.CounterVec
	pageItems *prometheus.HistogramVec
	mutations *prometheus.CounterVec
	updates   *prometheus.CounterVec
	ops       *prometheus.CounterVec
}

// NewEngineMetrics creates the collectors and registers them on reg. A nil reg means the default
// registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &EngineMetrics{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "pages_total",
			Help:      "Pages requested by link screens, by source and result.",
		}, []string{"source", "result"}),
		pageItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "page_items",
			Help:      "Records received per successful page.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"source"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "mutations_total",
			Help:      "Link mutations, by operation and result.",
		}, []string{"op", "result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "updates_total",
			Help:      "Row model updates, by kind.",
		}, []string{"kind"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "diff_ops_total",
			Help:      "Rows touched by diff operations, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.pages, m.pageItems, m.mutations, m.updates, m.ops)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *EngineMetrics) ObservePage(source string, received int, err error) {
	m.pages.WithLabelValues(source, result(err)).Inc()
	if err == nil {
		m.pageItems.WithLabelValues(source).Observe(float64(received))
	}
}

func (m *EngineMetrics) ObserveMutation(op string, err error) {
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

func (m *EngineMetrics) ObserveUpdate(sc diff.Script) {
	switch {
	case sc.Empty():
		m.updates.WithLabelValues("empty").Inc()
		return
	case sc.Refresh:
		m.updates.WithLabelValues("refresh").Inc()
	default:
		m.updates.WithLabelValues("structural").Inc()
	}
	for _, op := range sc.Ops {
		m.ops.WithLabelValues(op.Kind.String()).Add(float64(op.Count))
	}
}
