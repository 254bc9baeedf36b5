// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_processed_total",
			Help: "Total number of records processed by the import executor",
		},
		[]string{"status"}, // success | failed | skipped
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "import_run_duration_seconds",
			Help: "Duration of a full import run in seconds",
		},
	)

	OutreachBatchesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_batches_dispatched_total",
			Help: "Total number of outreach batches submitted to the provider",
		},
		[]string{"outcome"}, // submitted | failed | empty
	)

	OutreachBatchesCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_batches_cleaned_total",
			Help: "Total number of outreach batches cleaned up",
		},
	)

	WizardSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Number of open import wizard sessions",
		},
	)

	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Total number of wizard step transitions",
		},
		[]string{"from", "to"},
	)
)
