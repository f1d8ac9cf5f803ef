// Package telemetry holds the Prometheus metrics the portal records.
//
// Metrics are package-level collectors. The binary calls InitMetrics once
// and exposes them with promhttp when a metrics address is configured.
package telemetry
