package chaindata

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

// Transaction accumulates store writes. Reads observe the pending writes
// first and fall back to the snapshot captured at StartTransaction, so a
// transaction is a consistent view regardless of concurrent commits.
// Commit serializes against other commits and either makes the whole write
// set durable and visible, or leaves the in-memory view unchanged.
type Transaction struct {
	svc  *Service
	base *Store

	blocks           map[[32]byte]*types.SignedBeaconBlock
	blockStates      map[[32]byte]*types.BeaconState
	checkpointStates map[types.CheckpointKey]*types.BeaconState
	latestMessages   map[types.ValidatorIndex]*LatestMessage

	justified     *types.Checkpoint
	bestJustified *types.Checkpoint
	finalized     *types.Checkpoint
	genesisTime   *uint64
	time          *uint64
}

// StartTransaction opens a transaction over the current store snapshot. A
// transaction started before initialization operates over an empty base,
// which is how genesis synthesis bootstraps the store.
func (s *Service) StartTransaction() *Transaction {
	s.storeMu.RLock()
	base := s.store
	s.storeMu.RUnlock()
	if base == nil {
		base = NewStore()
	}
	return &Transaction{
		svc:              s,
		base:             base,
		blocks:           make(map[[32]byte]*types.SignedBeaconBlock),
		blockStates:      make(map[[32]byte]*types.BeaconState),
		checkpointStates: make(map[types.CheckpointKey]*types.BeaconState),
		latestMessages:   make(map[types.ValidatorIndex]*LatestMessage),
	}
}

// GenesisTime pending-else-base read.
func (t *Transaction) GenesisTime() uint64 {
	if t.genesisTime != nil {
		return *t.genesisTime
	}
	return t.base.GenesisTime
}

// Time pending-else-base read.
func (t *Transaction) Time() uint64 {
	if t.time != nil {
		return *t.time
	}
	return t.base.Time
}

// Justified pending-else-base read.
func (t *Transaction) Justified() *types.Checkpoint {
	if t.justified != nil {
		return t.justified
	}
	return t.base.Justified
}

// BestJustified pending-else-base read.
func (t *Transaction) BestJustified() *types.Checkpoint {
	if t.bestJustified != nil {
		return t.bestJustified
	}
	return t.base.BestJustified
}

// Finalized pending-else-base read.
func (t *Transaction) Finalized() *types.Checkpoint {
	if t.finalized != nil {
		return t.finalized
	}
	return t.base.Finalized
}

// Block returns the block for the root from pending writes or the snapshot.
func (t *Transaction) Block(root [32]byte) *types.SignedBeaconBlock {
	if b, ok := t.blocks[root]; ok {
		return b
	}
	return t.base.Block(root)
}

// HasBlock reports block presence across pending writes and the snapshot.
func (t *Transaction) HasBlock(root [32]byte) bool {
	return t.Block(root) != nil
}

// BlockState returns the post state for the block root.
func (t *Transaction) BlockState(root [32]byte) *types.BeaconState {
	if s, ok := t.blockStates[root]; ok {
		return s
	}
	return t.base.BlockState(root)
}

// CheckpointState returns the boundary state for the checkpoint.
func (t *Transaction) CheckpointState(c *types.Checkpoint) *types.BeaconState {
	if s, ok := t.checkpointStates[c.Key()]; ok {
		return s
	}
	return t.base.CheckpointState(c)
}

// LatestMessage returns the recorded vote of a validator.
func (t *Transaction) LatestMessage(idx types.ValidatorIndex) *LatestMessage {
	if m, ok := t.latestMessages[idx]; ok {
		return m
	}
	return t.base.LatestMessages[idx]
}

// PutBlock records a block together with its post state.
func (t *Transaction) PutBlock(root [32]byte, block *types.SignedBeaconBlock, state *types.BeaconState) {
	t.blocks[root] = block
	t.blockStates[root] = state
}

// PutCheckpointState records the boundary state of a checkpoint.
func (t *Transaction) PutCheckpointState(c *types.Checkpoint, state *types.BeaconState) {
	t.checkpointStates[c.Key()] = state
}

// SetLatestMessage records a validator vote for the head walk.
func (t *Transaction) SetLatestMessage(idx types.ValidatorIndex, msg *LatestMessage) {
	t.latestMessages[idx] = msg
}

// SetJustified updates the justified checkpoint singleton.
func (t *Transaction) SetJustified(c *types.Checkpoint) {
	t.justified = c
}

// SetBestJustified updates the best-justified checkpoint singleton.
func (t *Transaction) SetBestJustified(c *types.Checkpoint) {
	t.bestJustified = c
}

// SetFinalized updates the finalized checkpoint singleton.
func (t *Transaction) SetFinalized(c *types.Checkpoint) {
	t.finalized = c
}

// SetGenesisTime seeds the chain clock, only meaningful at genesis synthesis.
func (t *Transaction) SetGenesisTime(genesis uint64) {
	t.genesisTime = &genesis
}

// SetTime advances the store clock. Time is monotonic; attempts to move it
// backwards are ignored.
func (t *Transaction) SetTime(time uint64) {
	if time < t.Time() {
		return
	}
	t.time = &time
}

// Commit makes the transaction durable and visible: it computes the pruning
// set implied by a finalized advancement, sends the whole batch to storage,
// awaits the durable-write acknowledgement, atomically swaps the new store
// view in, and fires the post-commit feeds. On storage failure the in-memory
// view is untouched.
func (t *Transaction) Commit(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "chaindata.Commit")
	defer span.End()

	s := t.svc
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.storeMu.RLock()
	current := s.store
	s.storeMu.RUnlock()
	if current == nil {
		current = NewStore()
	}

	finalizedAdvanced := false
	if t.finalized != nil && current.Finalized != nil {
		if t.finalized.Epoch < current.Finalized.Epoch {
			return errors.Wrapf(ErrFinalizedRegression, "epoch %d < %d", t.finalized.Epoch, current.Finalized.Epoch)
		}
		finalizedAdvanced = t.finalized.Epoch > current.Finalized.Epoch
	} else if t.finalized != nil {
		finalizedAdvanced = true
	}

	update := iface.NewStorageUpdate()
	update.GenesisTime = t.genesisTime
	update.Time = t.time
	update.Justified = t.justified
	update.BestJustified = t.bestJustified
	update.Finalized = t.finalized
	for root, block := range t.blocks {
		update.Blocks[root] = block
	}
	for root, state := range t.blockStates {
		update.BlockStates[root] = state
	}
	for key, state := range t.checkpointStates {
		update.CheckpointStates[key] = state
	}

	next := current.copyForCommit()
	for root, block := range t.blocks {
		next.Blocks[root] = block
	}
	for root, state := range t.blockStates {
		next.BlockStates[root] = state
	}
	for key, state := range t.checkpointStates {
		next.CheckpointStates[key] = state
	}
	for idx, msg := range t.latestMessages {
		next.LatestMessages[idx] = msg
	}
	if t.genesisTime != nil {
		next.GenesisTime = *t.genesisTime
	}
	if t.time != nil && *t.time > next.Time {
		next.Time = *t.time
	}
	if t.justified != nil {
		next.Justified = t.justified
	}
	if t.bestJustified != nil {
		next.BestJustified = t.bestJustified
	}
	if t.finalized != nil {
		next.Finalized = t.finalized
	}

	if finalizedAdvanced {
		pruneStore(next, update)
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()
	if err := s.cfg.DB.SaveStoreUpdate(commitCtx, update); err != nil {
		commitFailures.Inc()
		return errors.Wrap(ErrCommitFailed, err.Error())
	}

	wasInitialized := s.StoreInitialized()
	s.storeMu.Lock()
	s.store = next
	s.storeMu.Unlock()

	commitCount.Inc()
	hotBlockCount.Set(float64(len(next.Blocks)))
	if next.Finalized != nil {
		finalizedEpochGauge.Set(float64(next.Finalized.Epoch))
	}
	if next.Justified != nil {
		justifiedEpochGauge.Set(float64(next.Justified.Epoch))
	}

	if !wasInitialized {
		storeInitializedCount.Inc()
		s.storeInitializedFeed.Send(&StoreInitializedData{GenesisTime: next.GenesisTime})
	}
	if finalizedAdvanced {
		log.WithFields(map[string]interface{}{
			"epoch": t.finalized.Epoch,
			"root":  bytesutil.Trunc(t.finalized.Root),
		}).Info("Finalized checkpoint advanced")
		s.finalizedCheckpointFeed.Send(&FinalizedCheckpointData{Checkpoint: t.finalized})
	}
	return nil
}

// pruneStore removes every block below the finalized epoch start slot except
// the finalized block itself, migrates the finalized chain segment to the
// finalized keyspace, and drops checkpoint states older than the finalized
// epoch. Mutates both the next store view and the storage update in place.
func pruneStore(next *Store, update *iface.StorageUpdate) {
	finalized := next.Finalized
	finalizedRoot := bytesutil.ToBytes32(finalized.Root)
	cutoff := slotutil.EpochStart(finalized.Epoch)

	// The newly finalized chain segment moves to the finalized keyspace.
	root := finalizedRoot
	for {
		block := next.Blocks[root]
		if block == nil {
			break
		}
		update.FinalizedBlocks[root] = block
		if state := next.BlockStates[root]; state != nil {
			update.FinalizedStates[root] = state
		}
		root = bytesutil.ToBytes32(block.Block.ParentRoot)
	}

	for root, block := range next.Blocks {
		if root == finalizedRoot {
			continue
		}
		if block.Block.Slot < cutoff {
			update.PrunedBlocks = append(update.PrunedBlocks, root)
			delete(next.Blocks, root)
			delete(next.BlockStates, root)
		}
	}
	for key := range next.CheckpointStates {
		if key.Epoch < finalized.Epoch {
			update.PrunedCheckpoints = append(update.PrunedCheckpoints, key)
			delete(next.CheckpointStates, key)
		}
	}
	prunedBlockCount.Add(float64(len(update.PrunedBlocks)))
}
