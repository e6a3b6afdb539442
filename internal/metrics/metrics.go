package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "exit_engine_open_positions", Help: "Positions with a tracked exit state"},
	)
	OiTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exit_engine_oi_ticks_total", Help: "OI refreshes by outcome"},
		[]string{"result"},
	)
	ExitFlags = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exit_engine_exit_flags_total", Help: "Exit flags raised by the OI vote"},
		[]string{"pattern"},
	)
	ExitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exit_engine_exit_decisions_total", Help: "Exit decisions by kind"},
		[]string{"kind"},
	)
	SourceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exit_engine_source_fallbacks_total", Help: "Degraded computations by missing source"},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(OpenPositions, OiTicks, ExitFlags, ExitDecisions, SourceFallbacks)
}

// Handler exposes the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
