// Package metrics holds the Prometheus collectors rackd exposes on /metrics,
// in addition to the default process/Go runtime collectors promhttp already
// registers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal counts identity resolver outcomes by result: "created",
	// "matched", or "duplicate".
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rackd",
		Subsystem: "node",
		Name:      "lookups_total",
		Help:      "Node identity lookups by outcome.",
	}, []string{"result"})

	// PowerReconcileTotal counts power reconciliation sweeps by outcome:
	// "match", "mismatch", or "error".
	PowerReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rackd",
		Subsystem: "power",
		Name:      "reconcile_total",
		Help:      "Power state reconciliation outcomes.",
	}, []string{"result"})
)
