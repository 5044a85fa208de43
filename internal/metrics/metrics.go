// Package metrics declares the Prometheus instruments the pipeline driver
// updates, registered with the default Prometheus registry. Grounded on
// the metrics package style of the AMD-AGI Lens
// exporters (pack example): package-level CounterVec/GaugeVec/HistogramVec
// values registered in init, namespaced and subsystemed rather than
// declared ad hoc at call sites.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "logweave"

var (
	// LinesTotal counts lines consumed from input files, labeled by
	// file_id.
	LinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Total number of log lines read from input files.",
		},
		[]string{"file_id"},
	)

	// MatchesTotal counts key-text match attempts, labeled by file_id and
	// whether the match succeeded.
	MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Total number of key-text match attempts against the active index.",
		},
		[]string{"file_id", "matched"},
	)

	// CommitteeFiringsTotal counts committee orchestration runs, labeled
	// by outcome (templates_written, empty, error).
	CommitteeFiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committee_firings_total",
			Help:      "Total number of committee orchestration runs, by outcome.",
		},
		[]string{"outcome"},
	)

	// IndexSwapsTotal counts successful hot-swaps of the compiled index.
	IndexSwapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_swaps_total",
			Help:      "Total number of times the compiled regex index was rebuilt and hot-swapped.",
		},
	)

	// DiversityBufferSize reports the current number of samples held in
	// the diversity buffer awaiting a committee firing.
	DiversityBufferSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "diversity_buffer_size",
			Help:      "Current number of samples buffered for the next committee firing.",
		},
	)

	// MicroBatchDuration tracks wall-clock duration of one pipeline
	// micro-batch (match, unmatched-row write, diversity admission, and any
	// committee firing it triggers).
	MicroBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "micro_batch_duration_seconds",
			Help:      "Duration of one micro-batch of the pipeline driver.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		LinesTotal,
		MatchesTotal,
		CommitteeFiringsTotal,
		IndexSwapsTotal,
		DiversityBufferSize,
		MicroBatchDuration,
	)
}
