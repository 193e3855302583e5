package kv

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	bolt "go.etcd.io/bbolt"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

// checkpointKeyBytes builds the lexicographic key of a checkpoint-state
// entry: big-endian epoch followed by the root.
func checkpointKeyBytes(k types.CheckpointKey) []byte {
	key := make([]byte, 0, 40)
	key = append(key, bytesutil.Uint64ToBytesBigEndian(uint64(k.Epoch))...)
	key = append(key, k.Root[:]...)
	return key
}

// SaveStoreUpdate applies a whole transaction batch in a single bolt update:
// hot puts, singleton updates, migration of newly finalized blocks, and the
// pruning set. Either all of it becomes durable or none of it does.
func (s *Store) SaveStoreUpdate(ctx context.Context, update *iface.StorageUpdate) error {
	ctx, span := trace.StartSpan(ctx, "db.SaveStoreUpdate")
	defer span.End()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		hotBlocks := tx.Bucket(hotBlocksBucket)
		hotStates := tx.Bucket(hotStatesBucket)
		checkpointStates := tx.Bucket(checkpointStatesBucket)
		metadata := tx.Bucket(chainMetadataBucket)

		for root, block := range update.Blocks {
			enc, err := encode(block)
			if err != nil {
				return err
			}
			if err := hotBlocks.Put(root[:], enc); err != nil {
				return err
			}
		}
		for root, state := range update.BlockStates {
			enc, err := encode(state)
			if err != nil {
				return err
			}
			if err := hotStates.Put(root[:], enc); err != nil {
				return err
			}
		}
		for key, state := range update.CheckpointStates {
			enc, err := encode(state)
			if err != nil {
				return err
			}
			if err := checkpointStates.Put(checkpointKeyBytes(key), enc); err != nil {
				return err
			}
		}

		if update.GenesisTime != nil {
			if err := metadata.Put(genesisTimeKey, bytesutil.Uint64ToBytesBigEndian(*update.GenesisTime)); err != nil {
				return err
			}
		}
		if update.Time != nil {
			if err := metadata.Put(storeTimeKey, bytesutil.Uint64ToBytesBigEndian(*update.Time)); err != nil {
				return err
			}
		}
		for key, checkpoint := range map[string]*types.Checkpoint{
			string(justifiedCheckpointKey):     update.Justified,
			string(bestJustifiedCheckpointKey): update.BestJustified,
			string(finalizedCheckpointKey):     update.Finalized,
		} {
			if checkpoint == nil {
				continue
			}
			enc, err := encode(checkpoint)
			if err != nil {
				return err
			}
			if err := metadata.Put([]byte(key), enc); err != nil {
				return err
			}
		}

		finalizedBlocks := tx.Bucket(finalizedBlocksBucket)
		finalizedSlotIndex := tx.Bucket(finalizedBlockSlotIndexBucket)
		for root, block := range update.FinalizedBlocks {
			enc, err := encode(block)
			if err != nil {
				return err
			}
			if err := finalizedBlocks.Put(root[:], enc); err != nil {
				return err
			}
			slotKey := bytesutil.Uint64ToBytesBigEndian(uint64(block.Block.Slot))
			if err := finalizedSlotIndex.Put(slotKey, root[:]); err != nil {
				return err
			}
		}
		if s.mode == iface.ModeArchive {
			finalizedStates := tx.Bucket(finalizedStatesBucket)
			for root, state := range update.FinalizedStates {
				enc, err := encode(state)
				if err != nil {
					return err
				}
				if err := finalizedStates.Put(root[:], enc); err != nil {
					return err
				}
			}
		}

		for _, root := range update.PrunedBlocks {
			if err := hotBlocks.Delete(root[:]); err != nil {
				return err
			}
			if err := hotStates.Delete(root[:]); err != nil {
				return err
			}
		}
		for _, key := range update.PrunedCheckpoints {
			if err := checkpointStates.Delete(checkpointKeyBytes(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentStore reassembles the in-memory fork-choice store snapshot from the
// hot keyspace. It returns nil when the database holds no store yet, which is
// the pre-genesis fresh-start condition rather than an error.
func (s *Store) RecentStore(ctx context.Context) (*iface.StoreSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "db.RecentStore")
	defer span.End()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	snapshot := &iface.StoreSnapshot{
		Blocks:           make(map[[32]byte]*types.SignedBeaconBlock),
		BlockStates:      make(map[[32]byte]*types.BeaconState),
		CheckpointStates: make(map[types.CheckpointKey]*types.BeaconState),
	}
	initialized := false

	err := s.db.View(func(tx *bolt.Tx) error {
		metadata := tx.Bucket(chainMetadataBucket)
		genesisEnc := metadata.Get(genesisTimeKey)
		if genesisEnc == nil {
			return nil
		}
		initialized = true
		snapshot.GenesisTime = bytesutil.BytesToUint64BigEndian(genesisEnc)
		snapshot.Time = bytesutil.BytesToUint64BigEndian(metadata.Get(storeTimeKey))

		for key, dst := range map[string]**types.Checkpoint{
			string(justifiedCheckpointKey):     &snapshot.Justified,
			string(bestJustifiedCheckpointKey): &snapshot.BestJustified,
			string(finalizedCheckpointKey):     &snapshot.Finalized,
		} {
			enc := metadata.Get([]byte(key))
			if enc == nil {
				return errors.Errorf("store is missing checkpoint singleton %s", key)
			}
			checkpoint := &types.Checkpoint{}
			if err := decode(enc, checkpoint); err != nil {
				return err
			}
			*dst = checkpoint
		}

		if err := tx.Bucket(hotBlocksBucket).ForEach(func(k, v []byte) error {
			block := &types.SignedBeaconBlock{}
			if err := decode(v, block); err != nil {
				return err
			}
			snapshot.Blocks[bytesutil.ToBytes32(k)] = block
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(hotStatesBucket).ForEach(func(k, v []byte) error {
			state := &types.BeaconState{}
			if err := decode(v, state); err != nil {
				return err
			}
			snapshot.BlockStates[bytesutil.ToBytes32(k)] = state
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(checkpointStatesBucket).ForEach(func(k, v []byte) error {
			if len(k) != 40 {
				return errors.Errorf("malformed checkpoint-state key of length %d", len(k))
			}
			state := &types.BeaconState{}
			if err := decode(v, state); err != nil {
				return err
			}
			key := types.CheckpointKey{
				Epoch: types.Epoch(bytesutil.BytesToUint64BigEndian(k[:8])),
				Root:  bytesutil.ToBytes32(k[8:]),
			}
			snapshot.CheckpointStates[key] = state
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, nil
	}
	return snapshot, nil
}

// HasBlock checks the hot keyspace for a block root.
func (s *Store) HasBlock(ctx context.Context, blockRoot [32]byte) bool {
	_, span := trace.StartSpan(ctx, "db.HasBlock")
	defer span.End()
	exists := false
	if err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(hotBlocksBucket).Get(blockRoot[:]) != nil
		return nil
	}); err != nil {
		return false
	}
	return exists
}

// FinalizedBlock retrieves a block from the finalized keyspace by root.
func (s *Store) FinalizedBlock(ctx context.Context, blockRoot [32]byte) (*types.SignedBeaconBlock, error) {
	_, span := trace.StartSpan(ctx, "db.FinalizedBlock")
	defer span.End()
	var block *types.SignedBeaconBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(finalizedBlocksBucket).Get(blockRoot[:])
		if enc == nil {
			return nil
		}
		block = &types.SignedBeaconBlock{}
		return decode(enc, block)
	})
	return block, err
}

// FinalizedBlockBySlot retrieves a finalized block through the slot index.
func (s *Store) FinalizedBlockBySlot(ctx context.Context, slot types.Slot) (*types.SignedBeaconBlock, error) {
	ctx, span := trace.StartSpan(ctx, "db.FinalizedBlockBySlot")
	defer span.End()
	var root []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		root = tx.Bucket(finalizedBlockSlotIndexBucket).Get(bytesutil.Uint64ToBytesBigEndian(uint64(slot)))
		return nil
	}); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	return s.FinalizedBlock(ctx, bytesutil.ToBytes32(root))
}

// FinalizedState retrieves a state from the finalized keyspace by block root.
// Only populated in Archive mode.
func (s *Store) FinalizedState(ctx context.Context, blockRoot [32]byte) (*types.BeaconState, error) {
	_, span := trace.StartSpan(ctx, "db.FinalizedState")
	defer span.End()
	var state *types.BeaconState
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(finalizedStatesBucket).Get(blockRoot[:])
		if enc == nil {
			return nil
		}
		state = &types.BeaconState{}
		return decode(enc, state)
	})
	return state, err
}
