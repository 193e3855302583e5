// Package forkchoice implements the pure fork-choice operations over a store
// transaction: clock ticks, block arrival, attestation arrival, and the
// weighted head walk. The state transition and attester resolution are
// consumed as injected functions.
package forkchoice

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

var log = logrus.WithField("prefix", "forkchoice")

// StateTransition applies a block on top of its parent state and returns the
// post state. The returned state's slot must equal the block's slot.
type StateTransition func(ctx context.Context, preState *types.BeaconState, block *types.SignedBeaconBlock) (*types.BeaconState, error)

// AttesterResolver expands an attestation's aggregation bits into the
// attesting validator indices against the given checkpoint state.
type AttesterResolver func(state *types.BeaconState, att *types.Attestation) ([]types.ValidatorIndex, error)

// OnTick advances the store clock and promotes the best-justified checkpoint
// to justified at epoch boundaries, per the fork-choice rule.
func OnTick(tx *chaindata.Transaction, currentTime uint64) {
	previousSlot := slotutil.SlotAtTime(tx.GenesisTime(), tx.Time())
	tx.SetTime(currentTime)
	currentSlot := slotutil.SlotAtTime(tx.GenesisTime(), tx.Time())

	if currentSlot <= previousSlot {
		return
	}
	if !slotutil.IsEpochStart(currentSlot) {
		return
	}
	justified := tx.Justified()
	best := tx.BestJustified()
	if justified == nil || best == nil {
		return
	}
	if best.Epoch > justified.Epoch {
		log.WithField("epoch", best.Epoch).Debug("Promoting best justified checkpoint at epoch boundary")
		tx.SetJustified(best)
	}
}

// OnBlock validates a signed block against the store, runs the state
// transition, records block and post state, and lifts any checkpoint
// advancement the post state carries into the store singletons. Returns the
// block root on success.
func OnBlock(ctx context.Context, tx *chaindata.Transaction, signed *types.SignedBeaconBlock, transition StateTransition) ([32]byte, error) {
	ctx, span := trace.StartSpan(ctx, "forkchoice.OnBlock")
	defer span.End()

	if signed == nil || signed.Block == nil {
		return [32]byte{}, errors.Wrap(ErrInvalidBlock, "nil block")
	}
	block := signed.Block
	root, err := types.SignedBlockRoot(signed)
	if err != nil {
		return [32]byte{}, errors.Wrap(ErrInvalidBlock, err.Error())
	}

	finalized := tx.Finalized()
	if finalized != nil {
		finalizedSlot := slotutil.EpochStart(finalized.Epoch)
		if block.Slot <= finalizedSlot && root != bytesutil.ToBytes32(finalized.Root) {
			return [32]byte{}, errors.Wrapf(ErrInvalidBlock, "block slot %d at or below finalized slot %d", block.Slot, finalizedSlot)
		}
	}

	currentSlot := slotutil.SlotAtTime(tx.GenesisTime(), tx.Time())
	if block.Slot > currentSlot {
		return [32]byte{}, errors.Wrapf(ErrFutureSlot, "block slot %d, current slot %d", block.Slot, currentSlot)
	}

	parentRoot := bytesutil.ToBytes32(block.ParentRoot)
	preState := tx.BlockState(parentRoot)
	if preState == nil {
		return [32]byte{}, errors.Wrapf(ErrParentUnknown, "parent %s", bytesutil.Trunc(block.ParentRoot))
	}

	postState, err := transition(ctx, preState, signed)
	if err != nil {
		return [32]byte{}, errors.Wrap(ErrInvalidBlock, err.Error())
	}
	if postState.Slot != block.Slot {
		return [32]byte{}, errors.Wrapf(ErrInvalidBlock, "post state slot %d does not match block slot %d", postState.Slot, block.Slot)
	}
	tx.PutBlock(root, signed, postState)

	if cp := postState.CurrentJustified; cp != nil {
		justified := tx.Justified()
		if justified == nil || cp.Epoch > justified.Epoch {
			ensureCheckpointState(tx, cp)
			best := tx.BestJustified()
			if best == nil || cp.Epoch > best.Epoch {
				tx.SetBestJustified(cp)
			}
			if shouldUpdateJustified(tx, currentSlot) {
				tx.SetJustified(cp)
			}
		}
	}
	if cp := postState.Finalized; cp != nil {
		finalized := tx.Finalized()
		if finalized == nil || cp.Epoch > finalized.Epoch {
			ensureCheckpointState(tx, cp)
			tx.SetFinalized(cp)
			// Finality implies justification at least as recent.
			justified := tx.Justified()
			if jcp := postState.CurrentJustified; jcp != nil && (justified == nil || jcp.Epoch > justified.Epoch) {
				tx.SetJustified(jcp)
			}
		}
	}
	return root, nil
}

// shouldUpdateJustified allows an eager justified update only in the early
// slots of an epoch; later arrivals wait for the epoch-boundary promotion in
// OnTick.
func shouldUpdateJustified(tx *chaindata.Transaction, currentSlot types.Slot) bool {
	sinceEpochStart := currentSlot.SubSlot(slotutil.EpochStart(slotutil.ToEpoch(currentSlot)))
	return sinceEpochStart < params.BeaconConfig().SafeSlotsToUpdateJustified
}

// ensureCheckpointState records a boundary state for the checkpoint when the
// store has none, using the post state of the checkpoint block.
func ensureCheckpointState(tx *chaindata.Transaction, cp *types.Checkpoint) {
	if tx.CheckpointState(cp) != nil {
		return
	}
	if state := tx.BlockState(bytesutil.ToBytes32(cp.Root)); state != nil {
		tx.PutCheckpointState(cp, state)
	}
}

// OnAttestation verifies an attestation against the store and records the
// attesting validators' latest messages for the head walk.
func OnAttestation(ctx context.Context, tx *chaindata.Transaction, att *types.Attestation, resolve AttesterResolver) error {
	ctx, span := trace.StartSpan(ctx, "forkchoice.OnAttestation")
	defer span.End()
	_ = ctx

	if att == nil || att.Data == nil || att.Data.Target == nil {
		return errors.Wrap(ErrInvalidAttestation, "nil attestation data")
	}
	data := att.Data
	target := data.Target

	currentSlot := slotutil.SlotAtTime(tx.GenesisTime(), tx.Time())
	currentEpoch := slotutil.ToEpoch(currentSlot)
	if target.Epoch > currentEpoch {
		return errors.Wrapf(ErrFutureSlot, "target epoch %d, current epoch %d", target.Epoch, currentEpoch)
	}
	previousEpoch := currentEpoch
	if currentEpoch > 0 {
		previousEpoch = currentEpoch - 1
	}
	if target.Epoch < previousEpoch {
		return errors.Wrapf(ErrInvalidAttestation, "target epoch %d is before previous epoch %d", target.Epoch, previousEpoch)
	}
	if slotutil.ToEpoch(data.Slot) != target.Epoch {
		return errors.Wrap(ErrInvalidAttestation, "attestation slot is not within target epoch")
	}

	targetRoot := bytesutil.ToBytes32(target.Root)
	if !tx.HasBlock(targetRoot) {
		return errors.Wrapf(ErrUnknownBlock, "target root %s", bytesutil.Trunc(target.Root))
	}
	beaconBlockRoot := bytesutil.ToBytes32(data.BeaconBlockRoot)
	votedBlock := tx.Block(beaconBlockRoot)
	if votedBlock == nil {
		return errors.Wrapf(ErrUnknownBlock, "block root %s", bytesutil.Trunc(data.BeaconBlockRoot))
	}
	if votedBlock.Block.Slot > data.Slot {
		return errors.Wrap(ErrInvalidAttestation, "attestation votes for a block newer than its own slot")
	}
	// Attestations affect fork choice from the slot after the one they
	// attest to.
	if currentSlot < data.Slot.Add(1) {
		return errors.Wrapf(ErrFutureSlot, "attestation for slot %d cannot be processed until slot %d", data.Slot, data.Slot.Add(1))
	}

	// The target block is known, so a missing checkpoint state means the
	// target was pruned past finality; such attestations can never apply.
	baseState := tx.CheckpointState(target)
	if baseState == nil {
		return errors.Wrapf(ErrInvalidAttestation, "no checkpoint state for target epoch %d", target.Epoch)
	}
	indices, err := resolve(baseState, att)
	if err != nil {
		return errors.Wrap(ErrInvalidAttestation, err.Error())
	}
	for _, idx := range indices {
		msg := tx.LatestMessage(idx)
		if msg == nil || target.Epoch > msg.Epoch {
			tx.SetLatestMessage(idx, &chaindata.LatestMessage{
				Epoch: target.Epoch,
				Root:  beaconBlockRoot,
			})
		}
	}
	return nil
}

// ProcessHead runs the weighted-GHOST walk over descendants of the justified
// root, returning the winning head root.
func ProcessHead(store *chaindata.Store) ([32]byte, error) {
	if store == nil || store.Justified == nil {
		return [32]byte{}, errors.New("store has no justified checkpoint")
	}
	justifiedRoot := bytesutil.ToBytes32(store.Justified.Root)
	if !store.HasBlock(justifiedRoot) {
		return [32]byte{}, errors.Errorf("justified root %s is not in the store", bytesutil.Trunc(store.Justified.Root))
	}
	justifiedState := store.CheckpointState(store.Justified)

	children := make(map[[32]byte][][32]byte, len(store.Blocks))
	for root, block := range store.Blocks {
		parent := bytesutil.ToBytes32(block.Block.ParentRoot)
		children[parent] = append(children[parent], root)
	}

	head := justifiedRoot
	for {
		candidates := children[head]
		if len(candidates) == 0 {
			return head, nil
		}
		best := candidates[0]
		bestWeight := latestAttestingBalance(store, justifiedState, best)
		for _, candidate := range candidates[1:] {
			weight := latestAttestingBalance(store, justifiedState, candidate)
			// Ties break lexicographically by root so every node
			// resolves the same head.
			if weight > bestWeight || (weight == bestWeight && bytes.Compare(candidate[:], best[:]) > 0) {
				best = candidate
				bestWeight = weight
			}
		}
		head = best
	}
}

// latestAttestingBalance sums the effective balances of validators whose
// latest message supports the given block.
func latestAttestingBalance(store *chaindata.Store, justifiedState *types.BeaconState, root [32]byte) uint64 {
	block := store.Block(root)
	if block == nil {
		return 0
	}
	slot := block.Block.Slot
	var balance uint64
	for idx, msg := range store.LatestMessages {
		if store.AncestorAtSlot(msg.Root, slot) != root {
			continue
		}
		if justifiedState != nil && uint64(idx) < uint64(len(justifiedState.Validators)) {
			validator := justifiedState.Validators[idx]
			if !validator.Slashed {
				balance += validator.EffectiveBalance
			}
		} else {
			// Without a balance source every vote weighs one unit.
			balance++
		}
	}
	return balance
}
