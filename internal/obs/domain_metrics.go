package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CarrierRequestsTotal counts outbound carrier API calls by outcome.
	CarrierRequestsTotal *prometheus.CounterVec
	// CarrierRequestDuration records carrier API latency in milliseconds.
	CarrierRequestDuration *prometheus.HistogramVec
	// RelaySearchTotal counts relay-point searches by surface and classified outcome.
	RelaySearchTotal *prometheus.CounterVec
	// ConnectionTestTotal counts admin credential checks.
	ConnectionTestTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers carrier Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CarrierRequestsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_requests_total",
			Help:      "Count of carrier API calls by operation and result.",
		}, []string{"carrier", "operation", "result"}))
		CarrierRequestDuration = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "carrier_request_duration_ms",
			Help:      "Carrier API call latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 8000, 15000},
		}, []string{"carrier", "operation"}))
		RelaySearchTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_search_total",
			Help:      "Count of relay-point searches by surface and outcome.",
		}, []string{"surface", "outcome"}))
		ConnectionTestTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_connection_test_total",
			Help:      "Count of carrier credential checks by result.",
		}, []string{"carrier", "result"}))
	})
}

// ObserveCarrierCall records one carrier API call. It is a no-op until
// MustRegisterDomainMetrics has run.
func ObserveCarrierCall(carrier, operation, result string, started time.Time) {
	if CarrierRequestsTotal != nil {
		CarrierRequestsTotal.WithLabelValues(carrier, operation, result).Inc()
	}
	if CarrierRequestDuration != nil {
		CarrierRequestDuration.WithLabelValues(carrier, operation).Observe(DurationMillis(time.Since(started)))
	}
}
