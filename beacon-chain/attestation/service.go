// Package attestation implements the attestation manager: the routing layer
// between gossip / block import and the fork-choice engine. Attestations that
// cannot be processed yet are parked in a pending bucket (unknown block root)
// or a future bucket (too early) and flushed when their precondition arrives.
package attestation

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	"github.com/zephyrlabs/zephyr/beacon-chain/forkchoice"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/attestations"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

var log = logrus.WithField("prefix", "attestation")

// Config carries the attestation manager dependencies.
type Config struct {
	ChainData *chaindata.Service
	Pool      attestations.Pool
	Resolver  forkchoice.AttesterResolver
}

// ProcessedAttestationData is fanned out after an attestation is applied to
// fork choice.
type ProcessedAttestationData struct {
	Attestation *types.Attestation
}

// Service is the attestation manager.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	err    error

	// pendingAtts parks attestations by the block root they vote for until
	// that block is imported.
	pendingAtts *cache.Cache

	futureMu   sync.Mutex
	futureAtts map[types.Slot][]*types.Attestation

	processedFeed event.Feed
}

// NewService instantiates the attestation manager.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	secsPerEpoch := time.Duration(uint64(params.BeaconConfig().SlotsPerEpoch)*params.BeaconConfig().SecondsPerSlot) * time.Second
	return &Service{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		pendingAtts: cache.New(secsPerEpoch, secsPerEpoch),
		futureAtts:  make(map[types.Slot][]*types.Attestation),
	}, nil
}

// Start launches the finalized-checkpoint pruning loop.
func (s *Service) Start() {
	go s.pruneOnFinalized()
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

// SubscribeProcessed registers a channel for processed-attestation fan-out.
func (s *Service) SubscribeProcessed(ch chan<- *ProcessedAttestationData) event.Subscription {
	return s.processedFeed.Subscribe(ch)
}

// pruneOnFinalized drops pending attestations whose target epoch fell behind
// the finalized checkpoint.
func (s *Service) pruneOnFinalized() {
	ch := make(chan *chaindata.FinalizedCheckpointData, 1)
	sub := s.cfg.ChainData.SubscribeFinalizedCheckpoint(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case data := <-ch:
			s.pruneBelowEpoch(data.Checkpoint.Epoch)
		case <-sub.Err():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) pruneBelowEpoch(epoch types.Epoch) {
	pruned := 0
	for key, item := range s.pendingAtts.Items() {
		atts, ok := item.Object.([]*types.Attestation)
		if !ok {
			continue
		}
		kept := make([]*types.Attestation, 0, len(atts))
		for _, att := range atts {
			if att.Data != nil && att.Data.Target != nil && att.Data.Target.Epoch < epoch {
				pruned++
				continue
			}
			kept = append(kept, att)
		}
		if len(kept) == 0 {
			s.pendingAtts.Delete(key)
		} else {
			s.pendingAtts.SetDefault(key, kept)
		}
	}
	if pruned > 0 {
		log.WithFields(logrus.Fields{
			"count": pruned,
			"epoch": epoch,
		}).Debug("Pruned pending attestations behind finality")
	}
}
