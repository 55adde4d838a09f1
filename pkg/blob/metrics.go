package blob

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// registryMetrics holds the Prometheus instruments for a registry. A nil
// receiver disables recording, so the registry never branches on whether
// metrics are configured.
type registryMetrics struct {
	materializations prometheus.Counter
	dedupHits        prometheus.Counter
	releaseMisses    prometheus.Counter
	liveEntries      prometheus.Gauge
}

// WithMetrics registers registry metrics with reg under the given
// namespace (e.g. "inkpress").
//
// Metrics collected:
//   - <ns>_blob_materializations_total: handles materialized
//   - <ns>_blob_dedup_hits_total: acquisitions served by an existing entry
//   - <ns>_blob_release_misses_total: releases of keys with no entry
//     (over-release; tolerated, but visible to operators)
//   - <ns>_blob_live_entries: entries currently held
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(r *Registry) {
		factory := promauto.With(reg)
		r.metrics = &registryMetrics{
			materializations: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blob_materializations_total",
				Help:      "Total number of blob handles materialized",
			}),
			dedupHits: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blob_dedup_hits_total",
				Help:      "Total acquisitions served by an existing entry",
			}),
			releaseMisses: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blob_release_misses_total",
				Help:      "Total releases of keys with no outstanding entry",
			}),
			liveEntries: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "blob_live_entries",
				Help:      "Number of blob registry entries currently held",
			}),
		}
	}
}

func (m *registryMetrics) materialized(live int) {
	if m == nil {
		return
	}
	m.materializations.Inc()
	m.liveEntries.Set(float64(live))
}

func (m *registryMetrics) dedupHit() {
	if m == nil {
		return
	}
	m.dedupHits.Inc()
}

func (m *registryMetrics) releaseMiss() {
	if m == nil {
		return
	}
	m.releaseMisses.Inc()
}

func (m *registryMetrics) revoked(live int) {
	if m == nil {
		return
	}
	m.liveEntries.Set(float64(live))
}
