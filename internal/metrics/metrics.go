package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReviewsTotal counts per-review outcomes of a pass, labeled by outcome.
	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_reviews_total",
		Help: "The total number of reviews handled, by outcome",
	}, []string{"store", "outcome"}) // outcome: answered, deferred, escalated, excluded, failed, skipped, duplicate, integrity

	// StoreRuns counts store session runs, labeled by result.
	StoreRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_store_runs_total",
		Help: "The total number of store session runs",
	}, []string{"store", "result"}) // result: success, error, skipped, dropped

	// RunDuration measures one store session pass end to end.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replier_run_duration_seconds",
		Help:    "Time taken to process one store session",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"result"})

	// GenerationAttempts counts generation loop attempts by result.
	GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_generation_attempts_total",
		Help: "The total number of reply generation attempts",
	}, []string{"result"}) // result: accepted, below_threshold, invalid, error

	// ReplyScore records rubric scores of valid candidates.
	ReplyScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replier_reply_score",
		Help:    "Rubric score of validated reply candidates",
		Buckets: []float64{40, 50, 60, 70, 75, 80, 85, 90, 95, 100},
	})

	// ScoringFailOpen counts scorer failures that returned a passing default.
	ScoringFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replier_scoring_fail_open_total",
		Help: "The total number of scorer failures treated as passing",
	})

	// AnalyzerResults counts content analysis verdicts.
	AnalyzerResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_analyzer_results_total",
		Help: "The total number of content analyses, by severity and eligibility",
	}, []string{"severity", "auto_reply"})

	// SubmissionOutcomes counts storefront submission outcomes.
	SubmissionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_submission_outcomes_total",
		Help: "The total number of reply submissions, by outcome",
	}, []string{"outcome"})

	// LLMRequests counts text-generation calls.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_llm_requests_total",
		Help: "The total number of text-generation requests",
	}, []string{"provider", "status"}) // status: success, error, retryable

	// LLMDuration measures text-generation latency.
	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replier_llm_duration_seconds",
		Help:    "Latency of text-generation requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// MCPToolCalls counts MCP tool executions
	MCPToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_mcp_tool_calls_total",
		Help: "The total number of MCP tool calls",
	}, []string{"server", "tool", "status"}) // status: success, error, tool_error, rejected, opened

	// ErrorLogWrites counts audit error log entries, by error type.
	ErrorLogWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replier_error_log_entries_total",
		Help: "The total number of entries written to the error log",
	}, []string{"error_type"})
)
