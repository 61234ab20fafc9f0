package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/utils/clock"

	"github.com/mihai-snyk/coverage-search/pkg/search/algorithms"
)

const namespace = "coverage_search"

// Recorder exports search progress as prometheus metrics. It is an
// algorithms.Listener and is passed to Search per call.
type Recorder struct {
	clock   clock.PassiveClock
	started time.Time

	iterations *prometheus.CounterVec
	searches   *prometheus.CounterVec
	covered    *prometheus.GaugeVec
	uncovered  *prometheus.GaugeVec
	archive    *prometheus.GaugeVec
	progress   *prometheus.GaugeVec
	duration   *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer, c clock.PassiveClock) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		clock: c,
		iterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed search iterations by algorithm",
		}, []string{"algorithm"}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed search calls by algorithm",
		}, []string{"algorithm"}),
		covered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "covered_objectives",
			Help:      "Objectives covered so far",
		}, []string{"algorithm"}),
		uncovered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uncovered_objectives",
			Help:      "Objectives not covered yet",
		}, []string{"algorithm"}),
		archive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size",
			Help:      "Distinct encodings held by the archive",
		}, []string{"algorithm"}),
		progress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_progress_ratio",
			Help:      "Used fraction of the tightest budget",
		}, []string{"algorithm"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of a search call",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"algorithm"}),
	}
}

func (r *Recorder) Notify(_ context.Context, event algorithms.Event) {
	switch event.Type {
	case algorithms.SearchStart:
		r.started = r.clock.Now()
	case algorithms.IterationComplete:
		r.iterations.WithLabelValues(event.Algorithm).Inc()
	case algorithms.SearchComplete:
		r.searches.WithLabelValues(event.Algorithm).Inc()
		r.duration.WithLabelValues(event.Algorithm).Observe(r.clock.Since(r.started).Seconds())
	}
	r.covered.WithLabelValues(event.Algorithm).Set(float64(event.Covered))
	r.uncovered.WithLabelValues(event.Algorithm).Set(float64(event.Uncovered))
	r.archive.WithLabelValues(event.Algorithm).Set(float64(event.ArchiveSize))
	r.progress.WithLabelValues(event.Algorithm).Set(event.Progress)
}
