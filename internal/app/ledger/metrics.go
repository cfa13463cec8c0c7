package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	grantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "grants_total",
		Help:      "Signup grants applied.",
	})
	debitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "debits_total",
		Help:      "Paid actions charged.",
	})
	transfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "transfers_total",
		Help:      "Completed peer transfers.",
	})
	transferredPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "transferred_points_total",
		Help:      "Points moved between users.",
	})
	transfersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "transfers_rejected_total",
		Help:      "Transfers refused by validation, by reason.",
	}, []string{"reason"})
	compensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "ledger",
		Name:      "compensation_failures_total",
		Help:      "Partial writes that could not be reverted.",
	})
)
