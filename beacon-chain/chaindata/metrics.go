package chaindata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeInitializedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_initialized_total",
		Help: "Times the fork-choice store was initialized",
	})
	commitCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_commits_total",
		Help: "Number of committed store transactions",
	})
	commitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_commit_failures_total",
		Help: "Number of store transaction commits that failed",
	})
	finalizedEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finalized_epoch",
		Help: "Epoch of the current finalized checkpoint",
	})
	justifiedEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "justified_epoch",
		Help: "Epoch of the current justified checkpoint",
	})
	hotBlockCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "store_hot_blocks",
		Help: "Number of non-pruned blocks held by the fork-choice store",
	})
	prunedBlockCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_pruned_blocks_total",
		Help: "Number of blocks pruned at finalized checkpoint advancement",
	})
)
