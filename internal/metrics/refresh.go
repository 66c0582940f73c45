package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RefreshOutcomes counts token refresh attempts by outcome
// (refreshed, expired, skipped, error).
var RefreshOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "token_refresh_outcomes_total",
		Help: "Total token refresh attempts by outcome",
	},
	[]string{"outcome"},
)
