package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics counts read-cache lookups per adapter.
type CacheMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metrics on the provided registerer.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Read-cache hits.",
	}, []string{"adapter"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Read-cache misses.",
	}, []string{"adapter"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Keys dropped from the read cache.",
	}, []string{"adapter"})
	reg.MustRegister(hits, misses, invalidations)
	return &CacheMetrics{hits: hits, misses: misses, invalidations: invalidations}
}

func (m *CacheMetrics) IncHit(adapter string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.WithLabelValues(normalizeLabel(adapter)).Inc()
}

func (m *CacheMetrics) IncMiss(adapter string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.WithLabelValues(normalizeLabel(adapter)).Inc()
}

func (m *CacheMetrics) AddInvalidations(adapter string, n int) {
	if m == nil || m.invalidations == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(normalizeLabel(adapter)).Add(float64(n))
}
