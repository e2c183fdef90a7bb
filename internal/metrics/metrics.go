// Package metrics exposes Prometheus instrumentation for a regridding
// run: how many bricks pass through each stage of the pipeline and how
// long the shuffle phases take.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters and histograms a pipeline reports
// against. Construct one per process with New and thread it through
// the stages that should be observed. A nil *Metrics is a valid no-op
// receiver for every method below, so core operations take an optional
// *Metrics without guarding each call site; the zero (non-nil) value
// is not usable.
type Metrics struct {
	BricksGenerated  prometheus.Counter
	BricksDropped    *prometheus.CounterVec
	SplitFragments   prometheus.Counter
	AssembleCalls    *prometheus.CounterVec
	ShufflePhaseSecs *prometheus.HistogramVec
	DownsampleSecs   *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// New registers every metric against reg and returns the bundle.
// Passing prometheus.NewRegistry() isolates a test's metrics from the
// process-wide default registry; passing prometheus.DefaultRegisterer
// wires them into /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BricksGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "recospark_bricks_generated_total",
			Help: "Bricks produced by brickwall.Generate.",
		}),
		BricksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recospark_bricks_dropped_total",
			Help: "Bricks removed from a wall, by reason.",
		}, []string{"reason"}),
		SplitFragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "recospark_split_fragments_total",
			Help: "Fragments emitted by regrid.Split across all source bricks.",
		}),
		AssembleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recospark_assemble_calls_total",
			Help: "regrid.Assemble invocations, by outcome.",
		}, []string{"outcome"}),
		ShufflePhaseSecs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recospark_shuffle_phase_seconds",
			Help:    "Wall-clock time spent in each shuffle phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		DownsampleSecs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recospark_downsample_seconds",
			Help:    "Time spent downsampling a brick wall, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "recospark_brick_cache_hits_total",
			Help: "Decompressed-brick cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "recospark_brick_cache_misses_total",
			Help: "Decompressed-brick cache misses.",
		}),
	}
}

// ObserveAssemble records an Assemble call's outcome ("kept" or
// "dropped_halo_only").
func (m *Metrics) ObserveAssemble(dropped bool) {
	if m == nil {
		return
	}
	if dropped {
		m.AssembleCalls.WithLabelValues("dropped_halo_only").Inc()
		return
	}
	m.AssembleCalls.WithLabelValues("kept").Inc()
}

// AddSplitFragments records n fragments emitted by one Split call.
func (m *Metrics) AddSplitFragments(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SplitFragments.Add(float64(n))
}

// AddGenerated records n bricks produced by generation.
func (m *Metrics) AddGenerated(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BricksGenerated.Add(float64(n))
}

// ObserveDropped records n bricks removed from a wall for reason
// ("empty", "halo_only").
func (m *Metrics) ObserveDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BricksDropped.WithLabelValues(reason).Add(float64(n))
}

// AddCacheSnapshot folds a brick cache's cumulative hit/miss counters
// into the Prometheus counters. Call once per cache lifetime (e.g. on
// shutdown); calling with the same snapshot twice double-counts.
func (m *Metrics) AddCacheSnapshot(hits, misses int64) {
	if m == nil {
		return
	}
	m.CacheHits.Add(float64(hits))
	m.CacheMisses.Add(float64(misses))
}

// TimeShufflePhase records how long phase took. Callers measure
// elapsed time themselves (e.g. via time.Since(start)) and pass it in,
// rather than TimeShufflePhase taking a start timestamp, so a single
// phase spanning multiple goroutines can still report one observation.
func (m *Metrics) TimeShufflePhase(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ShufflePhaseSecs.WithLabelValues(phase).Observe(elapsed.Seconds())
}
