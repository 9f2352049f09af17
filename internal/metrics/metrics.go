package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_webhook_events_total",
		Help: "Voice platform webhook events by type and outcome",
	}, []string{"type", "outcome"})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_stage_transitions_total",
		Help: "Committed session stage changes",
	}, []string{"to"})

	AnswersIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_answers_ignored_total",
		Help: "record_answer events dropped because the index did not match the cursor",
	})

	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_llm_duration_seconds",
		Help:    "Generative model call latency",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	}, []string{"op"})

	LLMFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_llm_failures_total",
		Help: "Generative model calls that errored or returned unusable output",
	}, []string{"op", "reason"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_jobs_processed_total",
		Help: "Background jobs by type and result",
	}, []string{"type", "result"})
)
