// Package chaindata maintains the authoritative in-memory fork-choice store
// of the beacon node. The store is mutated only through committed
// transactions; readers always observe the snapshot installed by the last
// successful commit.
package chaindata

import (
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

// LatestMessage is the most recent vote observed from a validator, consulted
// by the fork-choice head walk.
type LatestMessage struct {
	Epoch types.Epoch
	Root  [32]byte
}

// Store is the fork-choice memory: every non-pruned block with its post
// state, the checkpoint boundary states, the three checkpoint singletons and
// the clock fields. Installed stores are treated as immutable; mutation goes
// through a Transaction.
type Store struct {
	GenesisTime uint64
	Time        uint64

	Justified     *types.Checkpoint
	BestJustified *types.Checkpoint
	Finalized     *types.Checkpoint

	Blocks           map[[32]byte]*types.SignedBeaconBlock
	BlockStates      map[[32]byte]*types.BeaconState
	CheckpointStates map[types.CheckpointKey]*types.BeaconState
	LatestMessages   map[types.ValidatorIndex]*LatestMessage
}

// NewStore returns an empty store with all maps allocated.
func NewStore() *Store {
	return &Store{
		Blocks:           make(map[[32]byte]*types.SignedBeaconBlock),
		BlockStates:      make(map[[32]byte]*types.BeaconState),
		CheckpointStates: make(map[types.CheckpointKey]*types.BeaconState),
		LatestMessages:   make(map[types.ValidatorIndex]*LatestMessage),
	}
}

// CurrentSlot derives the slot from the store clock.
func (s *Store) CurrentSlot() types.Slot {
	return slotutil.SlotAtTime(s.GenesisTime, s.Time)
}

// HasBlock reports whether the block root is present.
func (s *Store) HasBlock(root [32]byte) bool {
	_, ok := s.Blocks[root]
	return ok
}

// Block returns the block for the root, nil when absent.
func (s *Store) Block(root [32]byte) *types.SignedBeaconBlock {
	return s.Blocks[root]
}

// BlockState returns the post state of the block root, nil when absent.
func (s *Store) BlockState(root [32]byte) *types.BeaconState {
	return s.BlockStates[root]
}

// CheckpointState returns the boundary state of a checkpoint, nil when absent.
func (s *Store) CheckpointState(c *types.Checkpoint) *types.BeaconState {
	return s.CheckpointStates[c.Key()]
}

// copyForCommit produces a shallow map copy of the store. Block and state
// values are shared with the previous snapshot, which is safe because
// installed values are never mutated.
func (s *Store) copyForCommit() *Store {
	next := &Store{
		GenesisTime:      s.GenesisTime,
		Time:             s.Time,
		Justified:        s.Justified,
		BestJustified:    s.BestJustified,
		Finalized:        s.Finalized,
		Blocks:           make(map[[32]byte]*types.SignedBeaconBlock, len(s.Blocks)),
		BlockStates:      make(map[[32]byte]*types.BeaconState, len(s.BlockStates)),
		CheckpointStates: make(map[types.CheckpointKey]*types.BeaconState, len(s.CheckpointStates)),
		LatestMessages:   make(map[types.ValidatorIndex]*LatestMessage, len(s.LatestMessages)),
	}
	for root, block := range s.Blocks {
		next.Blocks[root] = block
	}
	for root, state := range s.BlockStates {
		next.BlockStates[root] = state
	}
	for key, state := range s.CheckpointStates {
		next.CheckpointStates[key] = state
	}
	for idx, msg := range s.LatestMessages {
		next.LatestMessages[idx] = msg
	}
	return next
}

// AncestorAtSlot walks the parent chain from root down to the given slot and
// returns the ancestor root occupying it, or the zero root when the walk
// leaves the store.
func (s *Store) AncestorAtSlot(root [32]byte, slot types.Slot) [32]byte {
	for {
		block := s.Blocks[root]
		if block == nil {
			return [32]byte{}
		}
		if block.Block.Slot <= slot {
			return root
		}
		var parent [32]byte
		copy(parent[:], block.Block.ParentRoot)
		root = parent
	}
}
