package chaindata

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

var log = logrus.WithField("prefix", "chaindata")

// Config options for the recent-chain store service.
type Config struct {
	DB iface.Database
	// InitialState, when non-nil, synthesizes the store from an operator
	// supplied genesis state if storage holds none.
	InitialState *types.BeaconState
	// GenesisTrigger delivers a genesis state assembled by the Eth1
	// follower when neither storage nor configuration provides one.
	GenesisTrigger <-chan *types.BeaconState
	// CommitTimeout bounds the storage round-trip of a commit.
	CommitTimeout time.Duration
}

// Service owns the authoritative fork-choice store and serializes every
// mutation through the transaction commit protocol.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config

	storeMu  sync.RWMutex
	store    *Store
	headRoot [32]byte
	headSlot types.Slot
	headSet  bool

	// commitMu serializes transaction commits. Transactions may build
	// their writes concurrently.
	commitMu sync.Mutex

	storeInitializedFeed     event.Feed
	bestBlockInitializedFeed event.Feed
	finalizedCheckpointFeed  event.Feed
	reorgFeed                event.Feed
}

// NewService instantiates the recent-chain store service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.CommitTimeout == 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
}

// Start launches the storage-backed startup routine.
func (s *Service) Start() {
	go s.startFromStorage()
}

// Stop halts the service. The last committed store is already durable, so no
// final flush is required beyond closing the database, which the node owns.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status returns an error while the store is not yet initialized.
func (s *Service) Status() error {
	if !s.StoreInitialized() {
		return ErrStoreUninitialized
	}
	return nil
}

// StoreInitialized reports whether the authoritative store exists.
func (s *Service) StoreInitialized() bool {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	return s.store != nil
}

// CurrentStore returns the reader snapshot installed by the last commit.
func (s *Service) CurrentStore() (*Store, error) {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	if s.store == nil {
		return nil, ErrStoreUninitialized
	}
	return s.store, nil
}

// GenesisTime of the chain, zero before initialization.
func (s *Service) GenesisTime() uint64 {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	if s.store == nil {
		return 0
	}
	return s.store.GenesisTime
}

// FinalizedCheckpoint of the current store, nil before initialization.
func (s *Service) FinalizedCheckpoint() *types.Checkpoint {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	if s.store == nil {
		return nil
	}
	return s.store.Finalized
}

// JustifiedCheckpoint of the current store, nil before initialization.
func (s *Service) JustifiedCheckpoint() *types.Checkpoint {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	if s.store == nil {
		return nil
	}
	return s.store.Justified
}

// HeadRoot is the root selected by the last fork-choice head walk.
func (s *Service) HeadRoot() [32]byte {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	return s.headRoot
}

// HeadSlot is the slot of the current head block.
func (s *Service) HeadSlot() types.Slot {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	return s.headSlot
}

// SetHead records the result of a head walk. The first head fires the
// best-block-initialized feed; a head moving off the previous head's chain
// fires the reorg feed with the common ancestor slot.
func (s *Service) SetHead(root [32]byte) {
	s.storeMu.Lock()
	store := s.store
	oldRoot := s.headRoot
	hadHead := s.headSet
	if store == nil || store.Block(root) == nil {
		s.storeMu.Unlock()
		return
	}
	newSlot := store.Block(root).Block.Slot
	s.headRoot = root
	s.headSlot = newSlot
	s.headSet = true
	s.storeMu.Unlock()

	if !hadHead {
		s.bestBlockInitializedFeed.Send(&BestBlockInitializedData{Root: root, Slot: newSlot})
		return
	}
	if oldRoot == root {
		return
	}
	if old := store.Block(oldRoot); old != nil {
		// A head change is only a reorg when the old head is not an
		// ancestor of the new one.
		if store.AncestorAtSlot(root, old.Block.Slot) != oldRoot {
			ancestorSlot := s.commonAncestorSlot(store, oldRoot, root)
			log.WithFields(logrus.Fields{
				"oldHead":      bytesutil.Trunc(oldRoot[:]),
				"newHead":      bytesutil.Trunc(root[:]),
				"ancestorSlot": ancestorSlot,
			}).Info("Chain reorg occurred")
			s.reorgFeed.Send(&ReorgData{OldHead: oldRoot, NewHead: root, CommonAncestorSlot: ancestorSlot})
		}
	}
}

func (s *Service) commonAncestorSlot(store *Store, a, b [32]byte) types.Slot {
	seen := make(map[[32]byte]bool)
	root := a
	for {
		block := store.Block(root)
		if block == nil {
			break
		}
		seen[root] = true
		copy(root[:], block.Block.ParentRoot)
	}
	root = b
	for {
		block := store.Block(root)
		if block == nil {
			break
		}
		if seen[root] {
			return block.Block.Slot
		}
		copy(root[:], block.Block.ParentRoot)
	}
	return 0
}

// SubscribeStoreInitialized delivers a single event once the store exists.
func (s *Service) SubscribeStoreInitialized(ch chan<- *StoreInitializedData) event.Subscription {
	return s.storeInitializedFeed.Subscribe(ch)
}

// SubscribeBestBlockInitialized delivers a single event on the first head.
func (s *Service) SubscribeBestBlockInitialized(ch chan<- *BestBlockInitializedData) event.Subscription {
	return s.bestBlockInitializedFeed.Subscribe(ch)
}

// SubscribeFinalizedCheckpoint delivers finalized checkpoint advancements.
func (s *Service) SubscribeFinalizedCheckpoint(ch chan<- *FinalizedCheckpointData) event.Subscription {
	return s.finalizedCheckpointFeed.Subscribe(ch)
}

// SubscribeReorg delivers head reorganizations.
func (s *Service) SubscribeReorg(ch chan<- *ReorgData) event.Subscription {
	return s.reorgFeed.Subscribe(ch)
}

// installStore swaps in the first authoritative store and fires the
// store-initialized feed.
func (s *Service) installStore(store *Store) {
	s.storeMu.Lock()
	s.store = store
	s.storeMu.Unlock()
	storeInitializedCount.Inc()
	s.storeInitializedFeed.Send(&StoreInitializedData{GenesisTime: store.GenesisTime})
}
