// Package iface defines the database interface the beacon node services
// depend on, decoupled from the bolt-backed implementation in kv.
package iface

import (
	"context"
	"io"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// StorageMode selects how much finalized data the node retains.
type StorageMode int

const (
	// ModePrune keeps only the current finalized state.
	ModePrune StorageMode = iota
	// ModeArchive retains every finalized state.
	ModeArchive
)

// StoreSnapshot is the persisted form of the fork-choice store, as read back
// from the hot keyspace at startup.
type StoreSnapshot struct {
	GenesisTime      uint64
	Time             uint64
	Justified        *types.Checkpoint
	BestJustified    *types.Checkpoint
	Finalized        *types.Checkpoint
	Blocks           map[[32]byte]*types.SignedBeaconBlock
	BlockStates      map[[32]byte]*types.BeaconState
	CheckpointStates map[types.CheckpointKey]*types.BeaconState
}

// StorageUpdate is the durable half of a store transaction commit: the writes
// accumulated by the transaction plus the pruning set implied by a finalized
// checkpoint advancement. It is applied in a single database update.
type StorageUpdate struct {
	GenesisTime      *uint64
	Time             *uint64
	Justified        *types.Checkpoint
	BestJustified    *types.Checkpoint
	Finalized        *types.Checkpoint
	Blocks           map[[32]byte]*types.SignedBeaconBlock
	BlockStates      map[[32]byte]*types.BeaconState
	CheckpointStates map[types.CheckpointKey]*types.BeaconState

	// Blocks migrating from the hot to the finalized keyspace, and in
	// Archive mode their states.
	FinalizedBlocks map[[32]byte]*types.SignedBeaconBlock
	FinalizedStates map[[32]byte]*types.BeaconState

	PrunedBlocks      [][32]byte
	PrunedCheckpoints []types.CheckpointKey
}

// NewStorageUpdate returns an update with all put maps allocated.
func NewStorageUpdate() *StorageUpdate {
	return &StorageUpdate{
		Blocks:           make(map[[32]byte]*types.SignedBeaconBlock),
		BlockStates:      make(map[[32]byte]*types.BeaconState),
		CheckpointStates: make(map[types.CheckpointKey]*types.BeaconState),
		FinalizedBlocks:  make(map[[32]byte]*types.SignedBeaconBlock),
		FinalizedStates:  make(map[[32]byte]*types.BeaconState),
	}
}

// Database defines the persistence contract of the beacon node.
type Database interface {
	io.Closer
	DatabasePath() string
	ClearDB() error

	// Store lifecycle.
	SaveStoreUpdate(ctx context.Context, update *StorageUpdate) error
	RecentStore(ctx context.Context) (*StoreSnapshot, error)

	// Hot keyspace reads.
	HasBlock(ctx context.Context, blockRoot [32]byte) bool

	// Finalized keyspace reads.
	FinalizedBlock(ctx context.Context, blockRoot [32]byte) (*types.SignedBeaconBlock, error)
	FinalizedBlockBySlot(ctx context.Context, slot types.Slot) (*types.SignedBeaconBlock, error)
	FinalizedState(ctx context.Context, blockRoot [32]byte) (*types.BeaconState, error)

	// Eth1 follower stream.
	SaveDepositsFromBlock(ctx context.Context, record *types.DepositsFromBlock) error
	DepositsFromBlockStream(ctx context.Context) ([]*types.DepositsFromBlock, error)
	SaveMinGenesisTimeBlock(ctx context.Context, block *types.MinGenesisTimeBlock) error
	MinGenesisTimeBlock(ctx context.Context) (*types.MinGenesisTimeBlock, error)
}
