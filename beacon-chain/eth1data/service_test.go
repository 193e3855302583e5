package eth1data

import (
	"context"
	"testing"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/kv"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func setupService(t *testing.T, genesisValidatorCount uint64) *Service {
	store, err := kv.NewKVStore(t.TempDir(), &kv.Config{Mode: iface.ModePrune})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	svc, err := NewService(context.Background(), &Config{
		DB:                    store,
		GenesisValidatorCount: genesisValidatorCount,
	})
	require.NoError(t, err)
	return svc
}

func makeDeposit(seed byte) *types.Deposit {
	proof := make([][]byte, 33)
	for i := range proof {
		proof[i] = make([]byte, 32)
	}
	pubkey := make([]byte, 48)
	pubkey[0] = seed
	return &types.Deposit{
		Proof: proof,
		Data: &types.DepositData{
			Pubkey:                pubkey,
			WithdrawalCredentials: make([]byte, 32),
			Amount:                32 * 1e9,
			Signature:             make([]byte, 96),
		},
	}
}

func depositRecord(firstIndex uint64, blockNumber uint64, deposits ...*types.Deposit) *types.DepositsFromBlock {
	return &types.DepositsFromBlock{
		FirstIndex:  firstIndex,
		Count:       uint64(len(deposits)),
		BlockHash:   make([]byte, 32),
		BlockNumber: blockNumber,
		Deposits:    deposits,
	}
}

func TestOnDepositsFromBlock_IdempotentRedelivery(t *testing.T) {
	svc := setupService(t, 16384)
	ctx := context.Background()

	record := depositRecord(0, 100, makeDeposit(1), makeDeposit(2))
	require.NoError(t, svc.OnDepositsFromBlock(ctx, record))
	require.Equal(t, uint64(2), svc.DepositCount())

	require.NoError(t, svc.OnDepositsFromBlock(ctx, record))
	assert.Equal(t, uint64(2), svc.DepositCount())
}

func TestDepositsForBlock_StopsAtGap(t *testing.T) {
	svc := setupService(t, 16384)
	ctx := context.Background()

	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(0, 100, makeDeposit(1), makeDeposit(2), makeDeposit(3))))
	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(4, 101, makeDeposit(5), makeDeposit(6))))

	deposits, err := svc.DepositsForBlock(ctx, &types.BeaconState{Eth1DepositIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 3, len(deposits))

	// Once the state consumed past the gap, the later window is served.
	deposits, err = svc.DepositsForBlock(ctx, &types.BeaconState{Eth1DepositIndex: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, len(deposits))
}

func TestDepositsForBlock_CappedAtMaxDeposits(t *testing.T) {
	svc := setupService(t, 16384)
	ctx := context.Background()

	max := params.BeaconConfig().MaxDeposits
	deposits := make([]*types.Deposit, max+4)
	for i := range deposits {
		deposits[i] = makeDeposit(byte(i))
	}
	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(0, 100, deposits...)))

	served, err := svc.DepositsForBlock(ctx, &types.BeaconState{Eth1DepositIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, int(max), len(served))
}

func TestMajorityVote_StrictMajorityWins(t *testing.T) {
	winner := &types.Eth1Data{
		DepositRoot:  make([]byte, 32),
		DepositCount: 7,
		BlockHash:    []byte{'w'},
	}
	votingPeriodSlots := uint64(params.BeaconConfig().SlotsPerEpoch.Mul(uint64(params.BeaconConfig().EpochsPerEth1VotingPeriod)))
	votes := make([]*types.Eth1Data, 0, votingPeriodSlots)
	for i := uint64(0); i < votingPeriodSlots/2+1; i++ {
		votes = append(votes, winner)
	}
	votes = append(votes, &types.Eth1Data{DepositRoot: make([]byte, 32), BlockHash: []byte{'l'}})

	state := &types.BeaconState{
		Eth1Data:      &types.Eth1Data{BlockHash: []byte{'c'}},
		Eth1DataVotes: votes,
	}
	got := MajorityVote(state)
	assert.DeepEqual(t, winner, got)
}

func TestMajorityVote_FallsBackToCurrent(t *testing.T) {
	current := &types.Eth1Data{DepositRoot: make([]byte, 32), BlockHash: []byte{'c'}}
	state := &types.BeaconState{
		Eth1Data: current,
		Eth1DataVotes: []*types.Eth1Data{
			{DepositRoot: make([]byte, 32), BlockHash: []byte{'a'}},
			{DepositRoot: make([]byte, 32), BlockHash: []byte{'b'}},
		},
	}
	assert.DeepEqual(t, current, MajorityVote(state))
}

func TestGenesisTrigger_FiresOnceWhenThresholdMet(t *testing.T) {
	svc := setupService(t, 2)
	ctx := context.Background()

	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(0, 100, makeDeposit(1))))
	select {
	case <-svc.GenesisTrigger():
		t.Fatal("genesis must not trigger below the validator threshold")
	default:
	}

	require.NoError(t, svc.OnMinGenesisTimeBlock(ctx, &types.MinGenesisTimeBlock{
		Timestamp:   1606219200,
		BlockHash:   make([]byte, 32),
		BlockNumber: 1000,
	}))
	select {
	case <-svc.GenesisTrigger():
		t.Fatal("genesis must not trigger below the validator threshold")
	default:
	}

	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(1, 101, makeDeposit(2))))
	var state *types.BeaconState
	select {
	case state = <-svc.GenesisTrigger():
	default:
		t.Fatal("expected the genesis trigger to fire")
	}
	require.Equal(t, 2, len(state.Validators))
	assert.Equal(t, uint64(1606219200)+params.BeaconConfig().GenesisDelay, state.GenesisTime)
	assert.Equal(t, uint64(2), state.Eth1Data.DepositCount)

	// Further deposits after the trigger fired stay silent.
	require.NoError(t, svc.OnDepositsFromBlock(ctx, depositRecord(2, 102, makeDeposit(3))))
	select {
	case <-svc.GenesisTrigger():
		t.Fatal("the genesis trigger must fire at most once")
	default:
	}
}
