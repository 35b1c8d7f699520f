package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "gateway_calls_total",
		Help:      "Processor calls by provider, operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paycore",
		Name:      "gateway_call_duration_seconds",
		Help:      "Processor call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	GatewayRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "gateway_retries_total",
		Help:      "Retried processor calls",
	}, []string{"provider", "operation"})

	TransfersInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "transfers_initiated_total",
		Help:      "Transfers recorded by provider, payment type and status",
	}, []string{"provider", "type", "status"})

	TransferGuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "transfer_guard_rejections_total",
		Help:      "Transfers rejected before reaching the processor",
	}, []string{"reason"})

	TransfersReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "transfers_reconciled_total",
		Help:      "Transfer attempts resolved by a reconciliation read",
	}, []string{"result"})

	InstallmentsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "installments_advanced_total",
		Help:      "Installment outcomes",
	}, []string{"outcome"})

	FeeLogsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "fee_logs_synced_total",
		Help:      "Fee log rows created or updated, and fee lines skipped",
	}, []string{"action"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "webhook_events_total",
		Help:      "Received webhook events",
	}, []string{"provider", "result"})

	SchedulerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "scheduler_job_runs_total",
		Help:      "Scheduler job executions",
	}, []string{"job", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycore",
		Name:      "http_requests_total",
		Help:      "Served API requests by route and status code",
	}, []string{"method", "route", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paycore",
		Name:      "http_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
