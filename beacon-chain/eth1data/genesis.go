package eth1data

import (
	"context"

	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// OnMinGenesisTimeBlock persists the follower's min-genesis-time block and
// triggers genesis synthesis once enough deposits are cached.
func (s *Service) OnMinGenesisTimeBlock(ctx context.Context, block *types.MinGenesisTimeBlock) error {
	if block == nil {
		return errors.New("nil min-genesis-time block")
	}
	if err := s.cfg.DB.SaveMinGenesisTimeBlock(ctx, block); err != nil {
		return errors.Wrap(err, "could not persist min-genesis-time block")
	}
	s.minGenesis = block
	log.WithFields(map[string]interface{}{
		"timestamp":   block.Timestamp,
		"blockNumber": block.BlockNumber,
		"blockHash":   bytesutil.Trunc(block.BlockHash),
	}).Info("Observed min-genesis-time block")
	s.maybeTriggerGenesis(ctx)
	return nil
}

// maybeTriggerGenesis delivers a synthesized genesis state on the trigger
// channel once the min-genesis-time block is known and the deposit count
// reaches the configured threshold. The trigger fires at most once.
func (s *Service) maybeTriggerGenesis(_ context.Context) {
	if s.genesisSent || s.minGenesis == nil {
		return
	}
	if s.cache.count() < s.cfg.GenesisValidatorCount {
		return
	}

	state, err := s.genesisStateFromDeposits()
	if err != nil {
		log.WithError(err).Error("Could not synthesize genesis state from deposits")
		return
	}
	select {
	case s.genesisCh <- state:
		s.genesisSent = true
		log.WithFields(map[string]interface{}{
			"genesisTime": state.GenesisTime,
			"validators":  len(state.Validators),
		}).Info("Genesis trigger fired")
	default:
	}
}

// genesisStateFromDeposits folds the cached deposits into a genesis state
// anchored at the min-genesis-time block.
func (s *Service) genesisStateFromDeposits() (*types.BeaconState, error) {
	cfg := params.BeaconConfig()
	count := s.cache.count()
	deposits := s.cache.consecutiveFrom(0, count)
	if uint64(len(deposits)) < s.cfg.GenesisValidatorCount {
		return nil, errors.Errorf("deposit stream has a gap, %d consecutive of %d cached", len(deposits), count)
	}

	validators := make([]*types.Validator, 0, len(deposits))
	balances := make([]uint64, 0, len(deposits))
	for _, dep := range deposits {
		if dep.Data == nil {
			return nil, errors.New("deposit without data in cache")
		}
		amount := dep.Data.Amount
		effective := amount
		if effective > cfg.MaxEffectiveBalance {
			effective = cfg.MaxEffectiveBalance
		}
		validators = append(validators, &types.Validator{
			Pubkey:                bytesutil.SafeCopyBytes(dep.Data.Pubkey),
			WithdrawalCredentials: bytesutil.SafeCopyBytes(dep.Data.WithdrawalCredentials),
			EffectiveBalance:      effective,
			ActivationEpoch:       cfg.GenesisEpoch,
			ExitEpoch:             cfg.FarFutureEpoch,
			WithdrawableEpoch:     cfg.FarFutureEpoch,
		})
		balances = append(balances, amount)
	}

	genesisTime := s.minGenesis.Timestamp + cfg.GenesisDelay
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
			DepositCount: uint64(len(deposits)),
			BlockHash:    bytesutil.SafeCopyBytes(s.minGenesis.BlockHash),
		},
		Eth1DepositIndex: uint64(len(deposits)),
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
