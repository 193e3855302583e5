// Package interop generates deterministic genesis states for local and
// multi-client test networks. Validator keys are placeholders derived from
// the validator index; real deployments boot from deposits instead.
package interop

import (
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/hashutil"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// GenerateGenesisState synthesizes a deterministic genesis state with the
// given genesis time and validator count.
func GenerateGenesisState(genesisTime, numValidators uint64) (*types.BeaconState, error) {
	if numValidators == 0 {
		return nil, errors.New("no genesis validators requested")
	}
	cfg := params.BeaconConfig()
	validators := make([]*types.Validator, numValidators)
	balances := make([]uint64, numValidators)
	for i := uint64(0); i < numValidators; i++ {
		seed := hashutil.Hash(bytesutil.Uint64ToBytesBigEndian(i))
		pubkey := make([]byte, 48)
		copy(pubkey, seed[:])
		validators[i] = &types.Validator{
			Pubkey:                pubkey,
			WithdrawalCredentials: seed[:],
			EffectiveBalance:      cfg.MaxEffectiveBalance,
			ActivationEpoch:       cfg.GenesisEpoch,
			ExitEpoch:             cfg.FarFutureEpoch,
			WithdrawableEpoch:     cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxEffectiveBalance
	}

	state := &types.BeaconState{
		GenesisTime:           genesisTime,
		GenesisValidatorsRoot: make([]byte, 32),
		Slot:                  cfg.GenesisSlot,
		LatestBlockHeader: &types.BeaconBlockHeader{
			ParentRoot: cfg.ZeroHash[:],
			StateRoot:  make([]byte, 32),
			BodyRoot:   make([]byte, 32),
		},
		Eth1Data: &types.Eth1Data{
			DepositRoot:  make([]byte, 32),
			DepositCount: numValidators,
			BlockHash:    make([]byte, 32),
		},
		Validators:       validators,
		Balances:         balances,
		CurrentJustified: &types.Checkpoint{Epoch: cfg.GenesisEpoch, Root: make([]byte, 32)},
		Finalized:        &types.Checkpoint{Epoch: cfg.GenesisEpoch, Root: make([]byte, 32)},
	}
	validatorsRoot, err := types.HashTreeRoot(validators)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash genesis validators")
	}
	state.GenesisValidatorsRoot = validatorsRoot[:]
	return state, nil
}
