package blockchain

import (
	"context"
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	"github.com/zephyrlabs/zephyr/beacon-chain/blockmanager"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/attestations"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/slashings"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/voluntaryexits"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func setupOpsService(t *testing.T) (*Service, *attestations.Service, *slashings.Pool, *voluntaryexits.Pool) {
	attSvc, err := attestations.NewService(context.Background(), &attestations.Config{
		Pool: attestations.NewPool(nil),
	})
	require.NoError(t, err)
	slashingsPool := slashings.NewPool()
	exitPool := voluntaryexits.NewPool()
	s := NewService(context.Background(), &Config{
		AttPool:       attSvc,
		SlashingsPool: slashingsPool,
		ExitPool:      exitPool,
	})
	return s, attSvc, slashingsPool, exitPool
}

func opsState(validatorCount int) *types.BeaconState {
	validators := make([]*types.Validator, validatorCount)
	for i := range validators {
		validators[i] = &types.Validator{
			ExitEpoch:         params.BeaconConfig().FarFutureEpoch,
			WithdrawableEpoch: params.BeaconConfig().FarFutureEpoch,
		}
	}
	return &types.BeaconState{Slot: 2, Validators: validators}
}

func opsAttestation(bits bitfield.Bitlist) *types.Attestation {
	return &types.Attestation{
		AggregationBits: bits,
		Data: &types.AttestationData{
			Slot:            1,
			BeaconBlockRoot: make([]byte, 32),
			Source:          &types.Checkpoint{Root: make([]byte, 32)},
			Target:          &types.Checkpoint{Root: make([]byte, 32)},
		},
		Signature: make([]byte, 96),
	}
}

func opsAttesterSlashing(indices []uint64) *types.AttesterSlashing {
	data := func() *types.AttestationData {
		return &types.AttestationData{
			BeaconBlockRoot: make([]byte, 32),
			Source:          &types.Checkpoint{Root: make([]byte, 32)},
			Target:          &types.Checkpoint{Root: make([]byte, 32)},
		}
	}
	return &types.AttesterSlashing{
		Attestation1: &types.IndexedAttestation{AttestingIndices: indices, Data: data(), Signature: make([]byte, 96)},
		Attestation2: &types.IndexedAttestation{AttestingIndices: indices, Data: data(), Signature: make([]byte, 96)},
	}
}

func opsProposerSlashing(idx types.ValidatorIndex) *types.ProposerSlashing {
	header := func(stateRoot byte) *types.SignedBeaconBlockHeader {
		return &types.SignedBeaconBlockHeader{
			Header: &types.BeaconBlockHeader{
				ProposerIndex: idx,
				ParentRoot:    make([]byte, 32),
				StateRoot:     []byte{stateRoot},
				BodyRoot:      make([]byte, 32),
			},
			Signature: make([]byte, 96),
		}
	}
	return &types.ProposerSlashing{Header1: header(1), Header2: header(2)}
}

func opsExit(idx types.ValidatorIndex) *types.SignedVoluntaryExit {
	return &types.SignedVoluntaryExit{
		Exit:      &types.VoluntaryExit{Epoch: 0, ValidatorIndex: idx},
		Signature: make([]byte, 96),
	}
}

func TestRetireIncludedOperations_PurgesPools(t *testing.T) {
	s, attSvc, slashingsPool, exitPool := setupOpsService(t)
	ctx := context.Background()
	state := opsState(8)

	att := opsAttestation(bitfield.Bitlist{0b10011})
	require.NoError(t, attSvc.Pool().SaveAggregatedAttestation(att))
	require.NoError(t, slashingsPool.InsertAttesterSlashing(ctx, state, opsAttesterSlashing([]uint64{1})))
	require.NoError(t, slashingsPool.InsertProposerSlashing(ctx, state, opsProposerSlashing(2)))
	exitPool.InsertVoluntaryExit(ctx, state, opsExit(3))

	block := &types.SignedBeaconBlock{
		Block: &types.BeaconBlock{
			Slot: 2,
			Body: &types.BeaconBlockBody{
				Attestations:      []*types.Attestation{att},
				AttesterSlashings: []*types.AttesterSlashing{opsAttesterSlashing([]uint64{1})},
				ProposerSlashings: []*types.ProposerSlashing{opsProposerSlashing(2)},
				VoluntaryExits:    []*types.SignedVoluntaryExit{opsExit(3)},
			},
		},
	}
	s.retireIncludedOperations(&blockmanager.VerifiedBlockData{Root: [32]byte{'r'}, Block: block})

	assert.Equal(t, 0, attSvc.Pool().AggregatedAttestationCount())
	assert.Equal(t, 0, len(slashingsPool.PendingAttesterSlashings(ctx, state)))
	assert.Equal(t, 0, len(slashingsPool.PendingProposerSlashings(ctx, state)))
	assert.Equal(t, 0, len(exitPool.PendingExits(state, 2)))

	// Retired slashings must not re-enter the pool when re-gossiped.
	assert.NotNil(t, slashingsPool.InsertAttesterSlashing(ctx, state, opsAttesterSlashing([]uint64{1})))
	assert.NotNil(t, slashingsPool.InsertProposerSlashing(ctx, state, opsProposerSlashing(2)))
}

func TestRetireIncludedOperations_NilBodyIsIgnored(t *testing.T) {
	s, _, _, _ := setupOpsService(t)
	s.retireIncludedOperations(nil)
	s.retireIncludedOperations(&blockmanager.VerifiedBlockData{})
	s.retireIncludedOperations(&blockmanager.VerifiedBlockData{Block: &types.SignedBeaconBlock{}})
}

func TestOperationsForBlock_ServesPendingViews(t *testing.T) {
	s, attSvc, slashingsPool, exitPool := setupOpsService(t)
	ctx := context.Background()
	state := opsState(8)

	require.NoError(t, attSvc.Pool().SaveAggregatedAttestation(opsAttestation(bitfield.Bitlist{0b10011})))
	require.NoError(t, slashingsPool.InsertAttesterSlashing(ctx, state, opsAttesterSlashing([]uint64{4})))
	require.NoError(t, slashingsPool.InsertProposerSlashing(ctx, state, opsProposerSlashing(5)))
	exitPool.InsertVoluntaryExit(ctx, state, opsExit(6))

	ops, err := s.OperationsForBlock(ctx, state, state.Slot)
	require.NoError(t, err)
	assert.Equal(t, 1, len(ops.Attestations))
	assert.Equal(t, 1, len(ops.AttesterSlashings))
	assert.Equal(t, 1, len(ops.ProposerSlashings))
	assert.Equal(t, 1, len(ops.VoluntaryExits))
}
