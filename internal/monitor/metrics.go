package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalChecks counts completed site checks by final status.
	TotalChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitewake_checks_total",
		Help: "The total number of site checks completed, by status.",
	}, []string{"status"})
	// TotalWakeAttempts counts recovery actuations dispatched.
	TotalWakeAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewake_wake_attempts_total",
		Help: "The total number of wake-up actuations attempted.",
	})
	// TotalRenderErrors counts failed page renders.
	TotalRenderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewake_render_errors_total",
		Help: "The total number of page renders that failed.",
	})
	// TotalProbeHits counts checks satisfied by the plain-HTTP fast path.
	TotalProbeHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewake_probe_hits_total",
		Help: "The total number of checks satisfied without the browser.",
	})
)
