package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leadscope/domain/signal"
)

// Recorder publishes cascade activity as Prometheus metrics. It satisfies
// cascade.Observer.
type Recorder struct {
	stageEvaluations *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	pairResults      *prometheus.CounterVec
	pairDuration     prometheus.Histogram
	scanDuration     prometheus.Histogram
	scanCandidates   prometheus.Counter
}

// New registers the recorder's collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		stageEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscope_stage_evaluations_total",
				Help: "Layer evaluations by method and verdict",
			},
			[]string{"method", "status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadscope_stage_duration_seconds",
				Help:    "Time spent in a single layer",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"method"},
		),
		pairResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscope_pair_results_total",
				Help: "Cascade verdicts by deciding method and status",
			},
			[]string{"method", "status"},
		),
		pairDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadscope_pair_duration_seconds",
				Help:    "End-to-end time of one pair analysis",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadscope_scan_duration_seconds",
				Help:    "Wall time of a full candidate scan",
				Buckets: prometheus.DefBuckets,
			},
		),
		scanCandidates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadscope_scan_candidates_total",
				Help: "Candidates submitted to scans",
			},
		),
	}
}

// ObserveStage records one layer evaluation
func (r *Recorder) ObserveStage(method signal.Method, status signal.Status, elapsed time.Duration) {
	r.stageEvaluations.WithLabelValues(string(method), string(status)).Inc()
	r.stageDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

// ObservePair records the final verdict of one pair
func (r *Recorder) ObservePair(result signal.Result, elapsed time.Duration) {
	method := string(result.Method)
	if method == "" {
		method = "none"
	}
	r.pairResults.WithLabelValues(method, string(result.Status)).Inc()
	r.pairDuration.Observe(elapsed.Seconds())
}

// ObserveScan records a completed scan
func (r *Recorder) ObserveScan(candidates, _ int, elapsed time.Duration) {
	r.scanCandidates.Add(float64(candidates))
	r.scanDuration.Observe(elapsed.Seconds())
}
