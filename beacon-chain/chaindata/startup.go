package chaindata

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/params"
)

const (
	startupRetryBase = time.Second
	startupRetryCap  = 30 * time.Second
	startupFetchWait = 10 * time.Second
)

// startFromStorage is the startup protocol: fetch the current store from
// durable storage with bounded exponential backoff, retrying forever because
// the node is inert without a store. A missing store falls back to the
// configured initial state, and failing that, to the Eth1 genesis trigger.
func (s *Service) startFromStorage() {
	var snapshot *iface.StoreSnapshot
	backoff := startupRetryBase
	for {
		fetchCtx, cancel := context.WithTimeout(s.ctx, startupFetchWait)
		loaded, err := s.cfg.DB.RecentStore(fetchCtx)
		cancel()
		if err == nil {
			snapshot = loaded
			break
		}
		if s.ctx.Err() != nil {
			return
		}
		log.WithError(err).WithField("retryIn", backoff).Warn("Could not fetch store from storage, retrying")
		select {
		case <-time.After(backoff):
		case <-s.ctx.Done():
			return
		}
		backoff *= 2
		if backoff > startupRetryCap {
			backoff = startupRetryCap
		}
	}

	if snapshot != nil {
		store := storeFromSnapshot(snapshot)
		log.WithFields(map[string]interface{}{
			"blocks":         len(store.Blocks),
			"finalizedEpoch": store.Finalized.Epoch,
		}).Info("Loaded fork-choice store from storage")
		s.installStore(store)
		return
	}

	if s.cfg.InitialState != nil {
		if err := s.InitializeFromGenesisState(s.ctx, s.cfg.InitialState); err != nil {
			log.WithError(err).Error("Could not initialize store from configured genesis state")
		}
		return
	}

	if s.cfg.GenesisTrigger == nil {
		log.Warn("No store in storage, no initial state and no genesis trigger configured")
		return
	}
	log.Info("Waiting for genesis state from the Eth1 follower")
	select {
	case genesisState := <-s.cfg.GenesisTrigger:
		if err := s.InitializeFromGenesisState(s.ctx, genesisState); err != nil {
			log.WithError(err).Error("Could not initialize store from genesis trigger")
		}
	case <-s.ctx.Done():
	}
}

// InitializeFromGenesisState synthesizes the store from an initial state:
// the genesis block embeds the state root, all three checkpoints anchor at
// the genesis block, and the store clock starts at the state genesis time.
// A second initialization attempt fails with ErrAlreadyInitialized.
func (s *Service) InitializeFromGenesisState(ctx context.Context, genesisState *types.BeaconState) error {
	if genesisState == nil {
		return errors.New("nil genesis state")
	}
	if s.StoreInitialized() {
		return ErrAlreadyInitialized
	}

	stateRoot, err := types.HashTreeRoot(genesisState)
	if err != nil {
		return errors.Wrap(err, "could not hash genesis state")
	}
	genesisBlock := &types.SignedBeaconBlock{
		Block: &types.BeaconBlock{
			Slot:       params.BeaconConfig().GenesisSlot,
			ParentRoot: params.BeaconConfig().ZeroHash[:],
			StateRoot:  stateRoot[:],
			Body:       &types.BeaconBlockBody{},
		},
		Signature: make([]byte, 96),
	}
	genesisRoot, err := types.SignedBlockRoot(genesisBlock)
	if err != nil {
		return errors.Wrap(err, "could not hash genesis block")
	}
	checkpoint := &types.Checkpoint{
		Epoch: params.BeaconConfig().GenesisEpoch,
		Root:  genesisRoot[:],
	}

	tx := s.StartTransaction()
	tx.SetGenesisTime(genesisState.GenesisTime)
	tx.SetTime(genesisState.GenesisTime)
	tx.PutBlock(genesisRoot, genesisBlock, genesisState)
	tx.PutCheckpointState(checkpoint, genesisState)
	tx.SetJustified(checkpoint)
	tx.SetBestJustified(checkpoint)
	tx.SetFinalized(checkpoint)
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"genesisTime": genesisState.GenesisTime,
		"root":        bytesutil.Trunc(genesisRoot[:]),
	}).Info("Initialized fork-choice store from genesis state")
	s.SetHead(genesisRoot)
	return nil
}

func storeFromSnapshot(snapshot *iface.StoreSnapshot) *Store {
	store := NewStore()
	store.GenesisTime = snapshot.GenesisTime
	store.Time = snapshot.Time
	store.Justified = snapshot.Justified
	store.BestJustified = snapshot.BestJustified
	store.Finalized = snapshot.Finalized
	for root, block := range snapshot.Blocks {
		store.Blocks[root] = block
	}
	for root, state := range snapshot.BlockStates {
		store.BlockStates[root] = state
	}
	for key, state := range snapshot.CheckpointStates {
		store.CheckpointStates[key] = state
	}
	return store
}
