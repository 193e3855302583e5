package chaindata

import (
	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// StoreInitializedData is sent once the authoritative store exists, whether
// loaded from storage or synthesized from a genesis state.
type StoreInitializedData struct {
	GenesisTime uint64
}

// BestBlockInitializedData is sent once on the first head computation.
type BestBlockInitializedData struct {
	Root [32]byte
	Slot types.Slot
}

// FinalizedCheckpointData is sent after a commit advanced the finalized
// checkpoint.
type FinalizedCheckpointData struct {
	Checkpoint *types.Checkpoint
}

// ReorgData is sent when the selected head moved to a block that is not a
// descendant of the previous head.
type ReorgData struct {
	OldHead            [32]byte
	NewHead            [32]byte
	CommonAncestorSlot types.Slot
}
