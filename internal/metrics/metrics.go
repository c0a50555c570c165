package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChangesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_changes_published_total",
		Help: "Change events published to the stream hub.",
	}, []string{"table", "kind"})

	ChangesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curio_changes_dropped_total",
		Help: "Change events dropped because a subscriber's buffer was full.",
	})

	SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_subscriptions_active",
		Help: "Live change-stream subscriptions.",
	})

	BoardsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_boards_active",
		Help: "Open websocket board connections.",
	})

	SnapshotRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curio_snapshot_refreshes_total",
		Help: "Full snapshot fetches performed by live views.",
	})

	RollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_rollbacks_total",
		Help: "Optimistic mutations rolled back after a store failure.",
	}, []string{"op"})

	ScrapeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curio_scrape_errors_total",
		Help: "Metadata scrape attempts that failed.",
	})
)
