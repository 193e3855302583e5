package attestations

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregatedAttsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aggregated_attestations_in_pool_total",
		Help: "The number of aggregated attestations in the pool.",
	})
	unaggregatedAttsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unaggregated_attestations_in_pool_total",
		Help: "The number of unaggregated attestations in the pool.",
	})
	forkchoiceAttsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkchoice_attestations_in_pool_total",
		Help: "The number of attestations staged for fork choice.",
	})
	expiredAttsCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expired_attestations_total",
		Help: "The number of expired attestations removed from the pool.",
	})
)
