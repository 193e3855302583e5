package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_clock_node_slot",
		Help: "Slot the tick dispatcher is currently working through",
	})
	slotsMissedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_clock_slots_missed_total",
		Help: "Slots skipped by the drift guard",
	})
	droppedTickCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_clock_dropped_ticks_total",
		Help: "Ticks dropped because the prior tick was still in flight",
	})
	phasePanicCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_clock_phase_panics_total",
		Help: "Recovered panics inside slot phase handlers",
	})
	opsRetiredCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_included_operations_retired_total",
		Help: "Operations removed from the pending pools after block import",
	})
)
