// internal/common/metrics/metrics.go
package metrics

import (
	"rulebook-classifier/internal/classifier"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ClassificationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_verdicts_total",
			Help: "Class verdicts produced, by organization and status",
		},
		[]string{"organization", "status"},
	)

	AnswerWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_answer_warnings_total",
			Help: "Answer entries naming a class or question the rulebook does not contain",
		},
		[]string{"organization", "kind"},
	)

	RulebookReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulebook_reloads_total",
			Help: "Rulebook reload attempts, by organization and result",
		},
		[]string{"organization", "result"},
	)

	RulebooksPublished = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulebooks_published",
			Help: "Number of organizations with a published rulebook",
		},
	)
)

// RecordReport counts the verdicts and warnings of one classification.
func RecordReport(report classifier.Report) {
	for status, n := range report.Counts() {
		if n > 0 {
			ClassificationVerdicts.WithLabelValues(report.Organization, string(status)).Add(float64(n))
		}
	}
	for _, w := range report.Warnings {
		AnswerWarnings.WithLabelValues(report.Organization, string(w.Kind)).Inc()
	}
}
