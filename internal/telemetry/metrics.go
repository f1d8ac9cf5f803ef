package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StateTransitions counts portal phase changes
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "state_transitions_total",
			Help:      "Total number of portal state transitions",
		},
		[]string{"from", "to"},
	)

	// SessionFailures counts sessions that stopped on a fatal start-up error
	SessionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "session_failures_total",
			Help:      "Total number of portal sessions that failed to start a service",
		},
		[]string{"type"},
	)

	// DNSQueries counts DNS questions answered by the redirector
	DNSQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "dns_queries_total",
			Help:      "Total number of DNS queries answered with the portal address",
		},
		[]string{"qtype"},
	)

	// DNSMalformed counts packets the redirector could not parse
	DNSMalformed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "dns_malformed_total",
			Help:      "Total number of malformed DNS packets dropped",
		},
	)

	// HTTPRequests counts requests served by the config endpoint
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served by the portal",
		},
		[]string{"method", "status"},
	)

	// Submissions counts credential submissions by outcome
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captivecfg",
			Name:      "submissions_total",
			Help:      "Total number of credential submissions",
		},
		[]string{"result"},
	)

	// CatalogSize is the number of networks in the last filled catalog
	CatalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "captivecfg",
			Name:      "catalog_networks",
			Help:      "Number of networks listed on the config page",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		for _, c := range collectors() {
			_ = prometheus.DefaultRegisterer.Register(c)
		}
	})
}

// Register adds all metrics to reg. Tests use a private registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		StateTransitions,
		SessionFailures,
		DNSQueries,
		DNSMalformed,
		HTTPRequests,
		Submissions,
		CatalogSize,
	}
}
