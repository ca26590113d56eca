package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Stage runs started",
		},
		[]string{"stage"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_status_transitions_total",
			Help: "Committed contact status transitions",
		},
		[]string{"stage", "from", "to"},
	)

	contactErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_contact_errors_total",
			Help: "Per-contact failures that left the contact for a later run",
		},
		[]string{"stage"},
	)

	jsonRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_json_repairs_total",
			Help: "Model outputs that needed the control character repair pass",
		},
		[]string{"prompt", "outcome"},
	)

	emailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_emails_sent_total",
			Help: "Emails accepted by the delivery provider",
		},
		[]string{"domain"},
	)
)
