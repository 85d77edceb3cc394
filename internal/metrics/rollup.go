package metrics

import "github.com/prometheus/client_golang/prometheus"

// Rollup stages.
const (
	StageEmbed      = "embed"
	StageSearch     = "search"
	StageSynthesize = "synthesize"
)

// Synthesis outcomes.
const (
	SynthesisOK         = "ok"
	SynthesisNoResults  = "no_results"
	SynthesisFailed     = "failed"
	SynthesisNotRequest = "not_requested"
	SynthesisDisabled   = "disabled"
)

// Rollup retrieval metrics.
var (
	RollupStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rollup",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each rollup pipeline stage",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage", "status"},
	)

	RollupResultCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rollup",
			Name:      "result_count",
			Help:      "Number of candidates returned per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	RollupSynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rollup",
			Name:      "synthesis_total",
			Help:      "Synthesis attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Sync and enrichment metrics.
var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by status",
		},
		[]string{"status"},
	)

	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Deal records processed by sync, by result",
		},
		[]string{"result"}, // "upserted" / "skipped"
	)

	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "enrichment",
			Name:      "records_total",
			Help:      "Enrichment classifications by result",
		},
		[]string{"result"}, // "enriched" / "low_confidence" / "failed"
	)
)

var rollupMetricsRegistered bool

// RegisterRollupMetrics registers retrieval, sync and enrichment metrics. Must be called once from main.
func RegisterRollupMetrics() {
	if rollupMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		RollupStageDuration,
		RollupResultCount,
		RollupSynthesisTotal,
		SyncRunsTotal,
		SyncRecordsTotal,
		EnrichmentTotal,
	)
	rollupMetricsRegistered = true
}

// ObserveStage records the duration of a rollup stage in seconds.
func ObserveStage(stage string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	RollupStageDuration.WithLabelValues(stage, status).Observe(seconds)
}
