package session

import "github.com/prometheus/client_golang/prometheus"

var (
	TxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colorsnap_tx_total",
			Help: "Transaction record transitions by kind and status",
		},
		[]string{"kind", "status"},
	)

	PollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colorsnap_poll_errors_total",
			Help: "Failed remote reads by query",
		},
		[]string{"query"},
	)

	DiscardedReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colorsnap_discarded_reads_total",
			Help: "Game-state reads dropped before adoption",
		},
		[]string{"reason"},
	)

	Completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colorsnap_completions_total",
			Help: "Completed games by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colorsnap_active_sessions",
			Help: "Open sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(TxTotal, PollErrors, DiscardedReads, Completions, ActiveSessions)
}
