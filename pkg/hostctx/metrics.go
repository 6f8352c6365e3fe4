package hostctx

// © 2026 robinstat authors. MIT License.

import "github.com/prometheus/client_golang/prometheus"

// MetricsSink is the instrumentation seam every table and the stats
// aggregator report through, modeled on the teacher cache's metricsSink
// interface: a small set of counters/gauges plus a no-op implementation so
// instrumentation is opt-in via WithMetrics rather than mandatory.
type MetricsSink interface {
	IncFetchHit(kind string)
	IncFetchMiss(kind string)
	IncInsert(kind string)
	IncDelete(kind string)
	IncGrow(kind string)
	SetItems(kind string, n float64)
}

type NoopMetrics struct{}

func (NoopMetrics) IncFetchHit(string)       {}
func (NoopMetrics) IncFetchMiss(string)      {}
func (NoopMetrics) IncInsert(string)         {}
func (NoopMetrics) IncDelete(string)         {}
func (NoopMetrics) IncGrow(string)           {}
func (NoopMetrics) SetItems(string, float64) {}

// PromMetrics is the prometheus-backed MetricsSink shared by every
// specialization and the stats aggregator; "kind" (ptrhash, indexhash,
// unihash, fixkeyhash, speshstats) becomes a label value rather than a
// separate metric family per package, following the single CounterVec
// style of the teacher cache's promMetrics.
type PromMetrics struct {
	fetchHit  *prometheus.CounterVec
	fetchMiss *prometheus.CounterVec
	inserts   *prometheus.CounterVec
	deletes   *prometheus.CounterVec
	grows     *prometheus.CounterVec
	items     *prometheus.GaugeVec
}

// NewPromMetrics registers the shared metric families against reg and
// returns a sink every specialization's WithMetrics option can pass
// directly. Registering the same *PromMetrics against multiple tables is
// expected and intended: that is how "kind" ends up distinguishing them.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		fetchHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robinstat", Name: "fetch_hit_total", Help: "Successful fetches by table kind.",
		}, []string{"kind"}),
		fetchMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robinstat", Name: "fetch_miss_total", Help: "Missed fetches by table kind.",
		}, []string{"kind"}),
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robinstat", Name: "inserts_total", Help: "Inserts by table kind.",
		}, []string{"kind"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robinstat", Name: "deletes_total", Help: "Deletes by table kind.",
		}, []string{"kind"}),
		grows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robinstat", Name: "grows_total", Help: "Grow events by table kind.",
		}, []string{"kind"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "robinstat", Name: "items", Help: "Live item count by table kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.fetchHit, m.fetchMiss, m.inserts, m.deletes, m.grows, m.items)
	return m
}

func (m *PromMetrics) IncFetchHit(kind string)  { m.fetchHit.WithLabelValues(kind).Inc() }
func (m *PromMetrics) IncFetchMiss(kind string) { m.fetchMiss.WithLabelValues(kind).Inc() }
func (m *PromMetrics) IncInsert(kind string)    { m.inserts.WithLabelValues(kind).Inc() }
func (m *PromMetrics) IncDelete(kind string)    { m.deletes.WithLabelValues(kind).Inc() }
func (m *PromMetrics) IncGrow(kind string)      { m.grows.WithLabelValues(kind).Inc() }
func (m *PromMetrics) SetItems(kind string, n float64) {
	m.items.WithLabelValues(kind).Set(n)
}
