// Package transition holds the state-transition function the control plane
// consumes. The full registry accounting is out of scope for this node; the
// transition performed here advances the slot bookkeeping the control plane
// depends on: the latest block header chain, the eth1 voting tally and the
// deposit index.
package transition

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// ProcessSlots advances the state's slot counter up to the target slot.
func ProcessSlots(state *types.BeaconState, slot types.Slot) (*types.BeaconState, error) {
	if state.Slot > slot {
		return nil, errors.Errorf("cannot process slots backwards, state at %d, target %d", state.Slot, slot)
	}
	post := types.CopyBeaconState(state)
	post.Slot = slot
	return post, nil
}

// ExecuteStateTransition applies a signed block on top of its parent state
// and returns the post state. The returned state's slot equals the block's
// slot.
func ExecuteStateTransition(ctx context.Context, preState *types.BeaconState, signed *types.SignedBeaconBlock) (*types.BeaconState, error) {
	_, span := trace.StartSpan(ctx, "transition.ExecuteStateTransition")
	defer span.End()

	if signed == nil || signed.Block == nil || signed.Block.Body == nil {
		return nil, errors.New("nil block")
	}
	block := signed.Block
	if block.Slot <= preState.Slot && preState.Slot != params.BeaconConfig().GenesisSlot {
		return nil, errors.Errorf("block slot %d is not after state slot %d", block.Slot, preState.Slot)
	}

	post, err := ProcessSlots(preState, block.Slot)
	if err != nil {
		return nil, err
	}

	bodyRoot, err := types.HashTreeRoot(block.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash block body")
	}
	post.LatestBlockHeader = &types.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     make([]byte, 32),
		BodyRoot:      bodyRoot[:],
	}

	if block.Body.Eth1Data != nil {
		post.Eth1DataVotes = append(post.Eth1DataVotes, block.Body.Eth1Data)
		votingPeriodSlots := uint64(params.BeaconConfig().SlotsPerEpoch.Mul(uint64(params.BeaconConfig().EpochsPerEth1VotingPeriod)))
		if uint64(len(post.Eth1DataVotes))*2 > votingPeriodSlots {
			post.Eth1Data = types.CopyEth1Data(block.Body.Eth1Data)
		}
		if uint64(post.Slot.ModSlot(types.Slot(votingPeriodSlots))) == 0 {
			post.Eth1DataVotes = nil
		}
	}
	post.Eth1DepositIndex += uint64(len(block.Body.Deposits))

	return post, nil
}
