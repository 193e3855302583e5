// Package attestationutil resolves attestation aggregation bits against the
// committee assignment derived from a beacon state. Committees are contiguous
// partitions of the active validator set; signature verification is left to
// the state transition.
package attestationutil

import (
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

// ActiveValidatorIndices returns the indices of validators active in the
// given epoch, in validator-index order.
func ActiveValidatorIndices(state *types.BeaconState, epoch types.Epoch) []types.ValidatorIndex {
	indices := make([]types.ValidatorIndex, 0, len(state.Validators))
	for i, v := range state.Validators {
		if v == nil {
			continue
		}
		if v.ActivationEpoch <= epoch && epoch < v.ExitEpoch {
			indices = append(indices, types.ValidatorIndex(i))
		}
	}
	return indices
}

// CommitteeCountPerSlot returns how many committees each slot of the epoch
// carries for the given active validator count.
func CommitteeCountPerSlot(activeCount uint64) uint64 {
	cfg := params.BeaconConfig()
	count := activeCount / uint64(cfg.SlotsPerEpoch) / cfg.TargetCommitteeSize
	if count > cfg.MaxCommitteesPerSlot {
		count = cfg.MaxCommitteesPerSlot
	}
	if count == 0 {
		count = 1
	}
	return count
}

// BeaconCommittee returns the committee for the slot and committee index as a
// contiguous partition of the epoch's active validator set.
func BeaconCommittee(state *types.BeaconState, slot types.Slot, index types.CommitteeIndex) ([]types.ValidatorIndex, error) {
	epoch := slotutil.ToEpoch(slot)
	active := ActiveValidatorIndices(state, epoch)
	if len(active) == 0 {
		return nil, errors.New("no active validators in epoch")
	}
	committeesPerSlot := CommitteeCountPerSlot(uint64(len(active)))
	if uint64(index) >= committeesPerSlot {
		return nil, errors.Errorf("committee index %d out of range, %d committees per slot", index, committeesPerSlot)
	}
	slotsPerEpoch := uint64(params.BeaconConfig().SlotsPerEpoch)
	committeesPerEpoch := committeesPerSlot * slotsPerEpoch
	position := uint64(slot.ModSlot(params.BeaconConfig().SlotsPerEpoch))*committeesPerSlot + uint64(index)

	total := uint64(len(active))
	start := total * position / committeesPerEpoch
	end := total * (position + 1) / committeesPerEpoch
	return active[start:end], nil
}

// AttestingIndices expands an attestation's aggregation bits into validator
// indices using the committee of its slot and committee index.
func AttestingIndices(state *types.BeaconState, att *types.Attestation) ([]types.ValidatorIndex, error) {
	if att == nil || att.Data == nil {
		return nil, errors.New("nil attestation")
	}
	committee, err := BeaconCommittee(state, att.Data.Slot, att.Data.CommitteeIndex)
	if err != nil {
		return nil, err
	}
	if att.AggregationBits.Len() != uint64(len(committee)) {
		return nil, errors.Errorf("aggregation bits length %d does not match committee size %d", att.AggregationBits.Len(), len(committee))
	}
	indices := make([]types.ValidatorIndex, 0, att.AggregationBits.Count())
	for _, position := range att.AggregationBits.BitIndices() {
		indices = append(indices, committee[position])
	}
	return indices, nil
}
