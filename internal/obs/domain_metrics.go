package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ManagementCallsTotal counts outbound management API calls by endpoint
	// and response status.
	ManagementCallsTotal *prometheus.CounterVec
	// DonationAttemptsTotal counts donation capture attempts by outcome.
	DonationAttemptsTotal *prometheus.CounterVec
	// DonationCaptureLatency records donation capture latency in milliseconds.
	DonationCaptureLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ManagementCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "management_calls_total",
			Help:      "Count of outbound management API calls by endpoint and status.",
		}, []string{"endpoint", "status"})
		DonationAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donation_attempts_total",
			Help:      "Count of donation capture attempts by outcome.",
		}, []string{"result"})
		DonationCaptureLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "donation_capture_duration_ms",
			Help:      "Latency of donation capture calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})

		mustRegisterCollector(reg, ManagementCallsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ManagementCallsTotal = v
			}
		})
		mustRegisterCollector(reg, DonationAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DonationAttemptsTotal = v
			}
		})
		mustRegisterCollector(reg, DonationCaptureLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				DonationCaptureLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
