// Package blockmanager implements the block manager: the routing layer
// between gossip / sync and the fork-choice engine. Blocks whose parent is
// unknown are parked and their parent fetched from peers; blocks from a
// future slot wait for their slot to arrive.
package blockmanager

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/attestation"
	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	"github.com/zephyrlabs/zephyr/beacon-chain/forkchoice"
	"github.com/zephyrlabs/zephyr/beacon-chain/p2p"
	types "github.com/zephyrlabs/zephyr/consensus/types"
)

var log = logrus.WithField("prefix", "blockmanager")

// Config carries the block manager dependencies.
type Config struct {
	ChainData    *chaindata.Service
	Attestations *attestation.Service
	Transition   forkchoice.StateTransition
	Fetcher      p2p.BlockByRootRequester
}

// VerifiedBlockData is fanned out after a block is imported, so operation
// pools can retire the operations the block carries.
type VerifiedBlockData struct {
	Root  [32]byte
	Block *types.SignedBeaconBlock
}

// Service is the block manager.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	err    error

	bucketMu sync.Mutex
	// pendingBlocks parks blocks by their missing parent root.
	pendingBlocks map[[32]byte][]*types.SignedBeaconBlock
	// futureBlocks parks blocks by their slot.
	futureBlocks map[types.Slot][]*types.SignedBeaconBlock

	fetchMu  sync.Mutex
	inFlight map[[32]byte]*fetchState

	verifiedFeed event.Feed
}

type fetchState struct {
	attempts int
	active   bool
}

// NewService instantiates the block manager.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg,
		pendingBlocks: make(map[[32]byte][]*types.SignedBeaconBlock),
		futureBlocks:  make(map[types.Slot][]*types.SignedBeaconBlock),
		inFlight:      make(map[[32]byte]*fetchState),
	}, nil
}

// Start launches the pending-queue drain loop.
func (s *Service) Start() {
	go s.processPendingBlocksQueue()
}

// Stop halts the manager's background loops.
func (s *Service) Stop() error {
	defer s.cancel()
	return nil
}

// Status returns the current service error if there is any.
func (s *Service) Status() error {
	return s.err
}

// SubscribeVerifiedBlocks registers a channel for imported-block fan-out.
func (s *Service) SubscribeVerifiedBlocks(ch chan<- *VerifiedBlockData) event.Subscription {
	return s.verifiedFeed.Subscribe(ch)
}

// PendingBlockCount returns the number of blocks waiting for a parent.
func (s *Service) PendingBlockCount() int {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	count := 0
	for _, blocks := range s.pendingBlocks {
		count += len(blocks)
	}
	return count
}
