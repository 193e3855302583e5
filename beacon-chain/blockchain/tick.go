package blockchain

import (
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/forkchoice"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

// onTick is the dispatch pass of one tick: advance store time inside a short
// transaction, then work through the sync branch, the drift guard, and the
// three slot phases.
func (s *Service) onTick(nowSec uint64) {
	if !s.cfg.ChainData.StoreInitialized() {
		return
	}
	genesis := s.cfg.ChainData.GenesisTime()
	if genesis == 0 || nowSec < genesis {
		return
	}

	tx := s.cfg.ChainData.StartTransaction()
	forkchoice.OnTick(tx, nowSec)
	if err := tx.Commit(s.ctx); err != nil {
		s.err = err
		log.WithError(err).Error("Tick commit failed, shutting down")
		if s.cfg.Fatal != nil {
			select {
			case s.cfg.Fatal <- err:
			default:
			}
		}
		return
	}

	calculatedSlot := slotutil.SlotAtTime(genesis, nowSec)

	if !s.genesisSeen {
		// The first tick at or after genesis establishes the slot
		// counter; phase events begin with the next deadlines.
		s.genesisSeen = true
		s.nodeSlot = calculatedSlot
		s.markStarted(calculatedSlot)
		nodeSlotGauge.Set(float64(s.nodeSlot))
		log.WithFields(logrus.Fields{
			"genesisTime": genesis,
			"slot":        calculatedSlot,
		}).Info("Chain clock started")
		return
	}

	// Sync branch: while catching up, only the head walk runs on slot
	// crossings. No attestation or aggregate broadcasts.
	if s.cfg.Sync != nil && s.cfg.Sync.Syncing() && calculatedSlot >= s.nodeSlot && !s.startFired(s.nodeSlot) {
		s.processHead()
		s.publishSlotEvent(calculatedSlot)
		s.jumpTo(calculatedSlot.Add(1))
		return
	}

	// Drift guard: tolerate at most one slot of lag, then skip ahead.
	if calculatedSlot > s.nodeSlot.Add(1) {
		log.WithFields(logrus.Fields{
			"nodeSlot":       s.nodeSlot,
			"calculatedSlot": calculatedSlot,
		}).Warn("Slots missed, jumping to calculated slot")
		slotsMissedCount.Add(float64(uint64(calculatedSlot) - uint64(s.nodeSlot)))
		s.nodeSlot = calculatedSlot
		nodeSlotGauge.Set(float64(s.nodeSlot))
	}

	slot := s.nodeSlot

	if !s.startFired(slot) && nowSec >= slotutil.SlotStartSeconds(genesis, slot) {
		s.runPhase("start", slot, func() { s.slotStart(slot) })
		s.markStarted(slot)
	}
	if s.startFired(slot) && !s.attFired(slot) && nowSec >= slotutil.AttestationDueSeconds(genesis, slot) {
		s.runPhase("attestation", slot, func() { s.attestationDue(slot) })
		s.markAttested(slot)
	}
	if s.attFired(slot) && !s.aggFired(slot) && nowSec >= slotutil.AggregationDueSeconds(genesis, slot) {
		s.runPhase("aggregation", slot, func() { s.aggregationDue(slot) })
		s.markAggregated(slot)
		s.nodeSlot = slot.Add(1)
		nodeSlotGauge.Set(float64(s.nodeSlot))
	}
}

// slotStart emits the epoch event on epoch boundaries and fans the new slot
// out to the managers and pools.
func (s *Service) slotStart(slot types.Slot) {
	if slotutil.IsEpochStart(slot) {
		data := &EpochEventData{Epoch: slotutil.ToEpoch(slot)}
		if j := s.cfg.ChainData.JustifiedCheckpoint(); j != nil {
			data.JustifiedEpoch = j.Epoch
		}
		if f := s.cfg.ChainData.FinalizedCheckpoint(); f != nil {
			data.FinalizedEpoch = f.Epoch
			data.FinalizedRoot = bytesutil.ToBytes32(f.Root)
		}
		s.epochFeed.Send(data)
		log.WithField("epoch", data.Epoch).Info("Epoch boundary reached")
	}
	if s.cfg.AttManager != nil {
		s.cfg.AttManager.OnSlot(s.ctx, slot)
	}
	if s.cfg.BlockManager != nil {
		s.cfg.BlockManager.OnSlot(s.ctx, slot)
	}
	if s.cfg.AttPool != nil {
		s.cfg.AttPool.OnSlot(slot)
	}
}

// attestationDue runs the head walk, publishes the slot event, and requests
// an attestation broadcast for the fresh head.
func (s *Service) attestationDue(slot types.Slot) {
	headRoot := s.processHead()
	s.publishSlotEvent(slot)
	s.attBroadcastFeed.Send(&BroadcastAttestationData{HeadRoot: headRoot, Slot: slot})
}

// aggregationDue requests the aggregate broadcast for the closing slot.
func (s *Service) aggregationDue(slot types.Slot) {
	s.aggsBroadcastFeed.Send(&BroadcastAggregatesData{Slot: slot})
}

// processHead runs the fork-choice head walk over the current store snapshot
// and records the result. Returns the previous head unchanged on error.
func (s *Service) processHead() [32]byte {
	store, err := s.cfg.ChainData.CurrentStore()
	if err != nil {
		return s.cfg.ChainData.HeadRoot()
	}
	head, err := forkchoice.ProcessHead(store)
	if err != nil {
		log.WithError(err).Error("Could not determine chain head")
		return s.cfg.ChainData.HeadRoot()
	}
	s.cfg.ChainData.SetHead(head)
	return head
}

func (s *Service) publishSlotEvent(slot types.Slot) {
	peers := 0
	if s.cfg.Peers != nil {
		peers = s.cfg.Peers.PeerCount()
	}
	data := &SlotEventData{
		NodeSlot:  slot,
		HeadSlot:  s.cfg.ChainData.HeadSlot(),
		HeadRoot:  s.cfg.ChainData.HeadRoot(),
		Epoch:     slotutil.ToEpoch(slot),
		PeerCount: peers,
	}
	if f := s.cfg.ChainData.FinalizedCheckpoint(); f != nil {
		data.FinalizedEpoch = f.Epoch
		data.FinalizedRoot = bytesutil.ToBytes32(f.Root)
	}
	s.slotFeed.Send(data)
}

// runPhase executes one phase body, recovering panics so a broken phase does
// not take down the clock. The caller advances the mark regardless.
func (s *Service) runPhase(name string, slot types.Slot, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			phasePanicCount.Inc()
			log.WithFields(logrus.Fields{
				"phase": name,
				"slot":  slot,
				"panic": r,
			}).Error("Slot phase panicked")
		}
	}()
	fn()
}

// jumpTo fast-forwards the slot counter, marking every skipped phase fired.
func (s *Service) jumpTo(slot types.Slot) {
	s.nodeSlot = slot
	if slot > 0 {
		prev := uint64(slot)
		s.startMark = prev
		s.attMark = prev
		s.aggMark = prev
	}
	nodeSlotGauge.Set(float64(s.nodeSlot))
}

func (s *Service) startFired(slot types.Slot) bool { return s.startMark >= uint64(slot)+1 }
func (s *Service) attFired(slot types.Slot) bool   { return s.attMark >= uint64(slot)+1 }
func (s *Service) aggFired(slot types.Slot) bool   { return s.aggMark >= uint64(slot)+1 }

func (s *Service) markStarted(slot types.Slot) {
	if m := uint64(slot) + 1; m > s.startMark {
		s.startMark = m
	}
}

func (s *Service) markAttested(slot types.Slot) {
	if m := uint64(slot) + 1; m > s.attMark {
		s.attMark = m
	}
}

func (s *Service) markAggregated(slot types.Slot) {
	if m := uint64(slot) + 1; m > s.aggMark {
		s.aggMark = m
	}
}
