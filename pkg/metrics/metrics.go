// Package metrics exposes Prometheus instruments for the reconciliation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksReceived counts inbound webhook deliveries by outcome
	// (verified, rejected, unknown_type).
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "webhooks_received_total",
		Help:      "Inbound webhook deliveries by outcome",
	}, []string{"outcome"})

	// EventsDispatched counts dispatched events by type and result.
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "events_dispatched_total",
		Help:      "Webhook events routed to handlers by type and result",
	}, []string{"event_type", "result"})

	// TransfersApplied counts transfer records written to the mirror store.
	TransfersApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "transfers_applied_total",
		Help:      "Token transfers applied to the local mirror",
	}, []string{"result"})

	// BatchesScheduled counts batches created by the batch scheduler.
	BatchesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "batches_scheduled_total",
		Help:      "Transfer batches scheduled for delayed application",
	})

	// QueueAttempts counts outbound queue executor attempts by type and result.
	QueueAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "queue_attempts_total",
		Help:      "Outbound transaction attempts by type and result",
	}, []string{"tx_type", "result"})

	// QueueDepth tracks pending outbound transactions by status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tola_sync",
		Name:      "queue_depth",
		Help:      "Outbound transaction queue depth by status",
	}, []string{"status"})

	// LedgerRequests counts TOLA ledger API calls by operation and outcome.
	LedgerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tola_sync",
		Name:      "ledger_requests_total",
		Help:      "TOLA ledger service calls by operation and outcome",
	}, []string{"operation", "outcome"})
)
