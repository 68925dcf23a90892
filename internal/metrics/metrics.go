// Package metrics holds the prometheus collectors shared by the validator,
// the SMTP prober, the result cache and the batch orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxverify_validations_total",
			Help: "Completed address validations by reason code.",
		},
		[]string{"code"},
	)

	SMTPAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxverify_smtp_attempts_total",
			Help: "SMTP probe attempts against a single mail exchanger by outcome.",
		},
		[]string{"outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxverify_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	BatchAddresses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mxverify_batch_addresses_total",
			Help: "Addresses processed by batch validation.",
		},
	)
)
