package blockmanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importedBlockCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmanager_imported_blocks_total",
		Help: "The number of blocks imported into the store.",
	})
	pendingBlockCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmanager_pending_blocks_total",
		Help: "The number of blocks parked awaiting their parent.",
	})
	fetchFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmanager_parent_fetch_failures_total",
		Help: "The number of failed parent fetch requests.",
	})
)
