package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carrier_breaker_state",
			Help: "Current carrier breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrier_breaker_transition_total",
			Help: "Count of carrier breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrier_breaker_open_total",
			Help: "Number of times a carrier breaker opened",
		},
		[]string{"target"},
	)
	OutboundAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrier_outbound_attempts_total",
			Help: "Outbound carrier HTTP attempts by result",
		},
		[]string{"target", "result"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, OutboundAttempts)
}
