package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors shared by the client sync runtime and the server.
var (
	OutboundItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "sync",
		Name:      "outbound_items_total",
		Help:      "Queued mutations sent to the remote, by collection and result.",
	}, []string{"collection", "result"})

	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "sync",
		Name:      "passes_total",
		Help:      "Sync passes by kind (outbound, full, delta) and result (ok, error, dropped).",
	}, []string{"kind", "result"})

	InboundRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "sync",
		Name:      "inbound_records_total",
		Help:      "Records reconciled from the remote, by collection and action.",
	}, []string{"collection", "action"})

	QueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "partquip",
		Subsystem: "sync",
		Name:      "queue_pending",
		Help:      "Mutations waiting to be confirmed by the remote.",
	})

	LiveEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "live",
		Name:      "events_applied_total",
		Help:      "Remote change events applied to the Local Store.",
	}, []string{"collection", "type"})

	LiveReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "live",
		Name:      "reconnect_attempts_total",
		Help:      "Failed subscription attempts that triggered a backoff.",
	})

	BackupRestores = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "backup",
		Name:      "restores_total",
		Help:      "Backup documents restored into the Local Store, by mode.",
	}, []string{"mode"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Server requests by method, route and status.",
	}, []string{"method", "route", "status"})

	ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "partquip",
		Subsystem: "realtime",
		Name:      "change_events_total",
		Help:      "Row change events published to subscribers.",
	}, []string{"collection", "type"})
)
