// Package blockchain drives the node's slot clock: every tick it advances the
// fork-choice store's time inside a short transaction, then emits the per-slot
// phase events (start, attestation-due, aggregation-due) that the rest of the
// node hangs off.
package blockchain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/attestation"
	"github.com/zephyrlabs/zephyr/beacon-chain/blockmanager"
	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/attestations"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/slashings"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/voluntaryexits"
	"github.com/zephyrlabs/zephyr/beacon-chain/p2p"
	types "github.com/zephyrlabs/zephyr/consensus/types"
)

var log = logrus.WithField("prefix", "blockchain")

// Config carries the orchestrator dependencies.
type Config struct {
	ChainData     *chaindata.Service
	AttManager    *attestation.Service
	BlockManager  *blockmanager.Service
	AttPool       *attestations.Service
	SlashingsPool slashings.PoolManager
	ExitPool      voluntaryexits.PoolManager

	Peers p2p.PeerCounter
	Sync  p2p.SyncChecker

	// TickInterval is the clock granularity. Defaults to one second.
	TickInterval time.Duration
	// Fatal receives the error of an unrecoverable commit failure so the
	// node can exit non-zero. Sends never block.
	Fatal chan<- error
}

// Service is the slot clock and tick dispatcher.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	err    error

	// ticking is the single-writer guard: a tick arriving while the prior
	// one is still committing is dropped.
	ticking int32

	// nodeSlot is the slot the dispatcher is currently working through. It
	// advances in the aggregation phase, or jumps in the sync branch and
	// the drift guard.
	nodeSlot types.Slot
	// Per-phase high-water marks, stored as slot+1 so the zero value means
	// the phase never fired. Each phase fires at most once per slot.
	startMark uint64
	attMark   uint64
	aggMark   uint64
	// genesisSeen flips on the first tick at or after genesis time. That
	// tick establishes nodeSlot without emitting phase events.
	genesisSeen bool

	slotFeed          event.Feed
	epochFeed         event.Feed
	attBroadcastFeed  event.Feed
	aggsBroadcastFeed event.Feed
}

// SlotEventData is published at the attestation-due phase of every slot, and
// on sync-branch slot crossings.
type SlotEventData struct {
	NodeSlot       types.Slot
	HeadSlot       types.Slot
	HeadRoot       [32]byte
	Epoch          types.Epoch
	FinalizedEpoch types.Epoch
	FinalizedRoot  [32]byte
	PeerCount      int
}

// EpochEventData is published at epoch-boundary slot starts.
type EpochEventData struct {
	Epoch          types.Epoch
	JustifiedEpoch types.Epoch
	FinalizedEpoch types.Epoch
	FinalizedRoot  [32]byte
}

// BroadcastAttestationData asks the network layer to gossip an attestation to
// the current head.
type BroadcastAttestationData struct {
	HeadRoot [32]byte
	Slot     types.Slot
}

// BroadcastAggregatesData asks the network layer to gossip the slot's
// aggregated attestations.
type BroadcastAggregatesData struct {
	Slot types.Slot
}

// NewService instantiates the orchestrator.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
}

// Start launches the tick loop and the included-operations cleanup consumer.
func (s *Service) Start() {
	go s.tickLoop()
	if s.cfg.BlockManager != nil {
		go s.opsCleanupLoop()
	}
}

// Stop halts the tick loop.
func (s *Service) Stop() error {
	defer s.cancel()
	return nil
}

// Status returns the dispatcher error, set on an unrecoverable commit failure.
func (s *Service) Status() error {
	return s.err
}

// NodeSlot returns the slot the dispatcher is currently working through.
func (s *Service) NodeSlot() types.Slot {
	return s.nodeSlot
}

// SubscribeSlotEvent registers a channel for per-slot events.
func (s *Service) SubscribeSlotEvent(ch chan<- *SlotEventData) event.Subscription {
	return s.slotFeed.Subscribe(ch)
}

// SubscribeEpochEvent registers a channel for epoch-boundary events.
func (s *Service) SubscribeEpochEvent(ch chan<- *EpochEventData) event.Subscription {
	return s.epochFeed.Subscribe(ch)
}

// SubscribeBroadcastAttestation registers a channel for attestation broadcast
// requests.
func (s *Service) SubscribeBroadcastAttestation(ch chan<- *BroadcastAttestationData) event.Subscription {
	return s.attBroadcastFeed.Subscribe(ch)
}

// SubscribeBroadcastAggregates registers a channel for aggregate broadcast
// requests.
func (s *Service) SubscribeBroadcastAggregates(ch chan<- *BroadcastAggregatesData) event.Subscription {
	return s.aggsBroadcastFeed.Subscribe(ch)
}

func (s *Service) tickLoop() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.tick(uint64(now.Unix()))
		case <-s.ctx.Done():
			return
		}
	}
}

// tick runs one dispatch pass for the given wall-clock time in seconds. At
// most one tick is in flight at a time; overlapping ticks are dropped, the
// next one brings state up to date.
func (s *Service) tick(nowSec uint64) {
	if !atomic.CompareAndSwapInt32(&s.ticking, 0, 1) {
		droppedTickCount.Inc()
		return
	}
	defer atomic.StoreInt32(&s.ticking, 0)
	s.onTick(nowSec)
}
