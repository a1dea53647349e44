package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aster_hedge_bot"

// NewPrometheus builds counters on a fresh registry and returns the
// scrape handler to mount on the metrics listener.
func NewPrometheus() (*Metrics, http.Handler) {
	reg := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}
	m := &Metrics{
		RoundsCompleted:     counter("rounds_completed_total", "Rounds that reached CLOSED."),
		RoundsRolledBack:    counter("rounds_rolled_back_total", "Rounds compensated after an open-phase failure."),
		RoundsFailed:        counter("rounds_failed_total", "Rounds that ended FAILED."),
		RoundsSkipped:       counter("rounds_skipped_total", "Scheduler ticks skipped for lack of eligible wallets."),
		LegsPlaced:          counter("legs_placed_total", "Successfully executed legs, all phases."),
		LegsFailed:          counter("legs_failed_total", "Legs that failed after their retry budget."),
		CompensationsFailed: counter("compensations_failed_total", "Rollback legs that failed, leaving exposure."),
		WalletsBanned:       counter("wallets_banned_total", "Wallets permanently excluded after auth failures."),
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
