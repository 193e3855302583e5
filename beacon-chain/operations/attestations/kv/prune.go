package kv

import (
	"sync"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// PruneExpired removes attestations older than one epoch relative to the
// given slot from every group. Returns the number of attestations removed.
func (c *AttCaches) PruneExpired(slot types.Slot) int {
	if slot < params.BeaconConfig().SlotsPerEpoch {
		return 0
	}
	cutoff := slot.SubSlot(params.BeaconConfig().SlotsPerEpoch)
	pruned := 0
	pruned += pruneGroup(&c.unAggregateAttLock, c.unAggregatedAtt, cutoff)
	pruned += pruneGroup(&c.aggregatedAttLock, c.aggregatedAtt, cutoff)
	pruned += pruneGroup(&c.forkchoiceAttLock, c.forkchoiceAtt, cutoff)
	pruned += pruneGroup(&c.blockAttLock, c.blockAtt, cutoff)
	return pruned
}

func pruneGroup(lock *sync.RWMutex, group map[[32]byte][]*types.Attestation, cutoff types.Slot) int {
	lock.Lock()
	defer lock.Unlock()
	pruned := 0
	for root, atts := range group {
		kept := atts[:0]
		for _, att := range atts {
			if att.Data.Slot < cutoff {
				pruned++
				continue
			}
			kept = append(kept, att)
		}
		if len(kept) == 0 {
			delete(group, root)
		} else {
			group[root] = kept
		}
	}
	return pruned
}
