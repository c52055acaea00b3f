// Package metrics exposes Prometheus collectors for the treasury daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MintsTotal counts successful share mints.
	MintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treasury_mints_total",
		Help: "Number of successful share mints.",
	})

	// ReallocationRuns counts reallocation runs by outcome.
	ReallocationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_reallocation_runs_total",
		Help: "Number of reallocation runs, labelled by outcome.",
	}, []string{"outcome"})

	// ReallocationErrors counts reallocation runs that returned an error.
	ReallocationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treasury_reallocation_errors_total",
		Help: "Number of reallocation runs that failed.",
	})

	// TotalValue is the treasury's last observed total value in display units.
	TotalValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treasury_total_value",
		Help: "Treasury total value in base display units.",
	})

	// ActivePair is the currently deployed pair identifier, 0 when idle.
	ActivePair = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treasury_active_pair",
		Help: "Identifier of the pair holding deployed capital, 0 when idle.",
	})
)
