package forkchoice

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/kv"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func setupChainData(t *testing.T) *chaindata.Service {
	store, err := kv.NewKVStore(t.TempDir(), &kv.Config{Mode: iface.ModePrune})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return chaindata.NewService(context.Background(), &chaindata.Config{DB: store})
}

func makeBlock(t *testing.T, slot types.Slot, parent [32]byte) (*types.SignedBeaconBlock, [32]byte) {
	block := &types.SignedBeaconBlock{
		Block: &types.BeaconBlock{
			Slot:       slot,
			ParentRoot: parent[:],
			StateRoot:  make([]byte, 32),
			Body: &types.BeaconBlockBody{
				RandaoReveal: make([]byte, 96),
				Eth1Data: &types.Eth1Data{
					DepositRoot: make([]byte, 32),
					BlockHash:   make([]byte, 32),
				},
				Graffiti: make([]byte, 32),
			},
		},
		Signature: make([]byte, 96),
	}
	root, err := types.SignedBlockRoot(block)
	require.NoError(t, err)
	return block, root
}

func makeState(slot types.Slot) *types.BeaconState {
	return &types.BeaconState{
		GenesisTime: 1000,
		Slot:        slot,
	}
}

// identityTransition advances the pre state to the block slot without any
// registry bookkeeping.
func identityTransition(_ context.Context, preState *types.BeaconState, signed *types.SignedBeaconBlock) (*types.BeaconState, error) {
	post := *preState
	post.Slot = signed.Block.Slot
	return &post, nil
}

// seedTx commits a genesis block at slot 0 with all checkpoints anchored on
// it and returns the service and genesis root.
func seedTx(t *testing.T, s *chaindata.Service) [32]byte {
	block, root := makeBlock(t, 0, [32]byte{})
	checkpoint := &types.Checkpoint{Epoch: 0, Root: root[:]}
	tx := s.StartTransaction()
	tx.SetGenesisTime(1000)
	tx.SetTime(1000)
	tx.PutBlock(root, block, makeState(0))
	tx.PutCheckpointState(checkpoint, makeState(0))
	tx.SetJustified(checkpoint)
	tx.SetBestJustified(checkpoint)
	tx.SetFinalized(checkpoint)
	require.NoError(t, tx.Commit(context.Background()))
	return root
}

func slotTime(slot types.Slot) uint64 {
	return 1000 + uint64(slot)*12
}

func TestOnTick_PromotesBestJustifiedAtEpochBoundary(t *testing.T) {
	s := setupChainData(t)
	root := seedTx(t, s)

	better := &types.Checkpoint{Epoch: 1, Root: root[:]}
	tx := s.StartTransaction()
	tx.SetBestJustified(better)

	// Mid-epoch slot crossings leave justified untouched.
	OnTick(tx, slotTime(1))
	assert.Equal(t, types.Epoch(0), tx.Justified().Epoch)

	// An epoch-boundary crossing promotes the better checkpoint.
	OnTick(tx, slotTime(32))
	assert.Equal(t, types.Epoch(1), tx.Justified().Epoch)
	assert.Equal(t, slotTime(32), tx.Time())
}

func TestOnTick_NoPromotionWithoutSlotCrossing(t *testing.T) {
	s := setupChainData(t)
	root := seedTx(t, s)

	tx := s.StartTransaction()
	tx.SetTime(slotTime(32))
	tx.SetBestJustified(&types.Checkpoint{Epoch: 1, Root: root[:]})

	// The clock already sits inside slot 32; a repeated tick at the same
	// boundary must not promote.
	OnTick(tx, slotTime(32)+3)
	assert.Equal(t, types.Epoch(0), tx.Justified().Epoch)
}

func TestOnBlock_ParentUnknown(t *testing.T) {
	s := setupChainData(t)
	seedTx(t, s)

	orphan, _ := makeBlock(t, 1, [32]byte{'?'})
	tx := s.StartTransaction()
	tx.SetTime(slotTime(1))
	_, err := OnBlock(context.Background(), tx, orphan, identityTransition)
	if errors.Cause(err) != ErrParentUnknown {
		t.Fatalf("expected ErrParentUnknown, got %v", err)
	}
}

func TestOnBlock_FutureSlot(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	future, _ := makeBlock(t, 5, genesisRoot)
	tx := s.StartTransaction()
	_, err := OnBlock(context.Background(), tx, future, identityTransition)
	if errors.Cause(err) != ErrFutureSlot {
		t.Fatalf("expected ErrFutureSlot, got %v", err)
	}
}

func TestOnBlock_RejectsAtOrBelowFinalizedSlot(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	finalizedBlock, finalizedRoot := makeBlock(t, 64, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(70))
	tx.PutBlock(finalizedRoot, finalizedBlock, makeState(64))
	tx.SetFinalized(&types.Checkpoint{Epoch: 2, Root: finalizedRoot[:]})

	late, _ := makeBlock(t, 33, genesisRoot)
	_, err := OnBlock(context.Background(), tx, late, identityTransition)
	if errors.Cause(err) != ErrInvalidBlock {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}

	// The finalized block itself may be re-delivered.
	_, err = OnBlock(context.Background(), tx, finalizedBlock, identityTransition)
	require.NoError(t, err)
}

func TestOnBlock_TransitionFailureIsInvalid(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, _ := makeBlock(t, 1, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(1))
	failing := func(_ context.Context, _ *types.BeaconState, _ *types.SignedBeaconBlock) (*types.BeaconState, error) {
		return nil, errors.New("bad signature")
	}
	_, err := OnBlock(context.Background(), tx, block, failing)
	if errors.Cause(err) != ErrInvalidBlock {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}
}

func TestOnBlock_PostStateSlotMismatchIsInvalid(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, _ := makeBlock(t, 1, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(1))
	stuck := func(_ context.Context, preState *types.BeaconState, _ *types.SignedBeaconBlock) (*types.BeaconState, error) {
		return preState, nil
	}
	_, err := OnBlock(context.Background(), tx, block, stuck)
	if errors.Cause(err) != ErrInvalidBlock {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}
}

func TestOnBlock_RecordsBlockAndState(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, root := makeBlock(t, 1, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(1))
	got, err := OnBlock(context.Background(), tx, block, identityTransition)
	require.NoError(t, err)
	assert.Equal(t, root, got)
	assert.Equal(t, true, tx.HasBlock(root))
	assert.Equal(t, types.Slot(1), tx.BlockState(root).Slot)
}

func TestOnBlock_EagerJustifiedUpdateEarlyInEpoch(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	lifted := &types.Checkpoint{Epoch: 1, Root: genesisRoot[:]}
	lifting := func(_ context.Context, preState *types.BeaconState, signed *types.SignedBeaconBlock) (*types.BeaconState, error) {
		post := *preState
		post.Slot = signed.Block.Slot
		post.CurrentJustified = lifted
		return &post, nil
	}

	// Slot 33 is one slot into epoch 1, inside the safe update window.
	block, _ := makeBlock(t, 33, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(33))
	_, err := OnBlock(context.Background(), tx, block, lifting)
	require.NoError(t, err)
	assert.Equal(t, types.Epoch(1), tx.Justified().Epoch)
	assert.Equal(t, types.Epoch(1), tx.BestJustified().Epoch)
	require.NotNil(t, tx.CheckpointState(lifted))
}

func TestOnBlock_LateJustifiedUpdateWaitsForBoundary(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	lifted := &types.Checkpoint{Epoch: 1, Root: genesisRoot[:]}
	lifting := func(_ context.Context, preState *types.BeaconState, signed *types.SignedBeaconBlock) (*types.BeaconState, error) {
		post := *preState
		post.Slot = signed.Block.Slot
		post.CurrentJustified = lifted
		return &post, nil
	}

	// Slot 45 is 13 slots into epoch 1, past the safe update window.
	block, _ := makeBlock(t, 45, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(45))
	_, err := OnBlock(context.Background(), tx, block, lifting)
	require.NoError(t, err)
	assert.Equal(t, types.Epoch(0), tx.Justified().Epoch)
	assert.Equal(t, types.Epoch(1), tx.BestJustified().Epoch)

	// The boundary tick then promotes it.
	OnTick(tx, slotTime(64))
	assert.Equal(t, types.Epoch(1), tx.Justified().Epoch)
}

func TestOnBlock_FinalizedAdvancementImpliesJustification(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	finalizing := func(_ context.Context, preState *types.BeaconState, signed *types.SignedBeaconBlock) (*types.BeaconState, error) {
		post := *preState
		post.Slot = signed.Block.Slot
		post.CurrentJustified = &types.Checkpoint{Epoch: 3, Root: genesisRoot[:]}
		post.Finalized = &types.Checkpoint{Epoch: 2, Root: genesisRoot[:]}
		return &post, nil
	}

	block, _ := makeBlock(t, 129, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(129))
	_, err := OnBlock(context.Background(), tx, block, finalizing)
	require.NoError(t, err)
	assert.Equal(t, types.Epoch(2), tx.Finalized().Epoch)
	assert.Equal(t, types.Epoch(3), tx.Justified().Epoch)
}

func fixedResolver(indices ...types.ValidatorIndex) AttesterResolver {
	return func(_ *types.BeaconState, _ *types.Attestation) ([]types.ValidatorIndex, error) {
		return indices, nil
	}
}

func makeAttestation(slot types.Slot, blockRoot, targetRoot [32]byte, targetEpoch types.Epoch) *types.Attestation {
	return &types.Attestation{
		AggregationBits: bitlist(4),
		Data: &types.AttestationData{
			Slot:            slot,
			BeaconBlockRoot: blockRoot[:],
			Source:          &types.Checkpoint{Root: make([]byte, 32)},
			Target:          &types.Checkpoint{Epoch: targetEpoch, Root: targetRoot[:]},
		},
		Signature: make([]byte, 96),
	}
}

func bitlist(n uint64) []byte {
	b := make([]byte, (n/8)+1)
	b[n/8] |= 1 << (n % 8)
	b[0] |= 1
	return b
}

func TestOnAttestation_ErrorRouting(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, root := makeBlock(t, 33, genesisRoot)
	tx := s.StartTransaction()
	tx.SetTime(slotTime(40))
	_, err := OnBlock(context.Background(), tx, block, identityTransition)
	require.NoError(t, err)

	tests := []struct {
		name string
		att  *types.Attestation
		want error
	}{
		{
			name: "nil data",
			att:  &types.Attestation{},
			want: ErrInvalidAttestation,
		},
		{
			name: "future target epoch",
			att:  makeAttestation(70, root, genesisRoot, 2),
			want: ErrFutureSlot,
		},
		{
			name: "slot outside target epoch",
			att:  makeAttestation(10, root, genesisRoot, 1),
			want: ErrInvalidAttestation,
		},
		{
			name: "unknown target root",
			att:  makeAttestation(34, root, [32]byte{'u'}, 1),
			want: ErrUnknownBlock,
		},
		{
			name: "unknown voted block",
			att:  makeAttestation(34, [32]byte{'v'}, genesisRoot, 1),
			want: ErrUnknownBlock,
		},
		{
			name: "votes for a newer block than its slot",
			att:  makeAttestation(32, root, genesisRoot, 1),
			want: ErrInvalidAttestation,
		},
		{
			name: "attestation slot not yet processable",
			att:  makeAttestation(40, root, genesisRoot, 1),
			want: ErrFutureSlot,
		},
		{
			name: "missing target checkpoint state",
			att:  makeAttestation(34, root, root, 1),
			want: ErrInvalidAttestation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := OnAttestation(context.Background(), tx, tt.att, fixedResolver(0))
			if errors.Cause(err) != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOnAttestation_StaleTargetEpoch(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	tx := s.StartTransaction()
	tx.SetTime(slotTime(70))
	att := makeAttestation(1, genesisRoot, genesisRoot, 0)
	err := OnAttestation(context.Background(), tx, att, fixedResolver(0))
	if errors.Cause(err) != ErrInvalidAttestation {
		t.Fatalf("expected ErrInvalidAttestation for a stale target, got %v", err)
	}
}

func TestOnAttestation_RecordsLatestMessages(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, root := makeBlock(t, 33, genesisRoot)
	target := &types.Checkpoint{Epoch: 1, Root: root[:]}
	tx := s.StartTransaction()
	tx.SetTime(slotTime(40))
	_, err := OnBlock(context.Background(), tx, block, identityTransition)
	require.NoError(t, err)
	tx.PutCheckpointState(target, tx.BlockState(root))

	att := makeAttestation(34, root, root, 1)
	require.NoError(t, OnAttestation(context.Background(), tx, att, fixedResolver(1, 2)))

	for _, idx := range []types.ValidatorIndex{1, 2} {
		msg := tx.LatestMessage(idx)
		require.NotNil(t, msg)
		assert.Equal(t, types.Epoch(1), msg.Epoch)
		assert.Equal(t, root, msg.Root)
	}
}

func TestOnAttestation_KeepsNewerMessage(t *testing.T) {
	s := setupChainData(t)
	genesisRoot := seedTx(t, s)

	block, root := makeBlock(t, 33, genesisRoot)
	target := &types.Checkpoint{Epoch: 1, Root: root[:]}
	tx := s.StartTransaction()
	tx.SetTime(slotTime(40))
	_, err := OnBlock(context.Background(), tx, block, identityTransition)
	require.NoError(t, err)
	tx.PutCheckpointState(target, tx.BlockState(root))
	tx.SetLatestMessage(1, &chaindata.LatestMessage{Epoch: 2, Root: genesisRoot})

	att := makeAttestation(34, root, root, 1)
	require.NoError(t, OnAttestation(context.Background(), tx, att, fixedResolver(1)))
	assert.Equal(t, types.Epoch(2), tx.LatestMessage(1).Epoch)
	assert.Equal(t, genesisRoot, tx.LatestMessage(1).Root)
}

func TestProcessHead_WalksHeaviestBranch(t *testing.T) {
	genesis, genesisRoot := makeBlock(t, 0, [32]byte{})
	left, leftRoot := makeBlock(t, 1, genesisRoot)
	right, rightRoot := makeBlock(t, 2, genesisRoot)

	store := chaindata.NewStore()
	store.GenesisTime = 1000
	store.Time = slotTime(3)
	store.Justified = &types.Checkpoint{Epoch: 0, Root: genesisRoot[:]}
	store.Blocks[genesisRoot] = genesis
	store.Blocks[leftRoot] = left
	store.Blocks[rightRoot] = right
	justifiedState := &types.BeaconState{
		Validators: []*types.Validator{
			{EffectiveBalance: 32e9},
			{EffectiveBalance: 32e9},
			{EffectiveBalance: 32e9, Slashed: true},
		},
	}
	store.CheckpointStates[store.Justified.Key()] = justifiedState

	// Two honest votes back the left branch, one slashed vote backs the
	// right branch.
	store.LatestMessages[0] = &chaindata.LatestMessage{Epoch: 0, Root: leftRoot}
	store.LatestMessages[1] = &chaindata.LatestMessage{Epoch: 0, Root: leftRoot}
	store.LatestMessages[2] = &chaindata.LatestMessage{Epoch: 0, Root: rightRoot}

	head, err := ProcessHead(store)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, leftRoot, head)
}

func TestProcessHead_LexicographicTieBreak(t *testing.T) {
	genesis, genesisRoot := makeBlock(t, 0, [32]byte{})
	a, aRoot := makeBlock(t, 1, genesisRoot)
	b, bRoot := makeBlock(t, 2, genesisRoot)

	store := chaindata.NewStore()
	store.GenesisTime = 1000
	store.Time = slotTime(3)
	store.Justified = &types.Checkpoint{Epoch: 0, Root: genesisRoot[:]}
	store.Blocks[genesisRoot] = genesis
	store.Blocks[aRoot] = a
	store.Blocks[bRoot] = b

	head, err := ProcessHead(store)
	if err != nil {
		t.Fatal(err)
	}
	want := aRoot
	if bytes.Compare(bRoot[:], aRoot[:]) > 0 {
		want = bRoot
	}
	assert.Equal(t, want, head)
}

func TestProcessHead_FallbackUnitWeights(t *testing.T) {
	genesis, genesisRoot := makeBlock(t, 0, [32]byte{})
	left, leftRoot := makeBlock(t, 1, genesisRoot)
	right, rightRoot := makeBlock(t, 2, genesisRoot)

	store := chaindata.NewStore()
	store.GenesisTime = 1000
	store.Time = slotTime(3)
	store.Justified = &types.Checkpoint{Epoch: 0, Root: genesisRoot[:]}
	store.Blocks[genesisRoot] = genesis
	store.Blocks[leftRoot] = left
	store.Blocks[rightRoot] = right

	// No justified state in the store, so every vote weighs one unit.
	store.LatestMessages[7] = &chaindata.LatestMessage{Epoch: 0, Root: rightRoot}
	store.LatestMessages[8] = &chaindata.LatestMessage{Epoch: 0, Root: rightRoot}
	store.LatestMessages[9] = &chaindata.LatestMessage{Epoch: 0, Root: leftRoot}

	head, err := ProcessHead(store)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, rightRoot, head)
}

func TestProcessHead_DescendantVotesCountForAncestors(t *testing.T) {
	genesis, genesisRoot := makeBlock(t, 0, [32]byte{})
	left, leftRoot := makeBlock(t, 1, genesisRoot)
	leftChild, leftChildRoot := makeBlock(t, 3, leftRoot)
	right, rightRoot := makeBlock(t, 2, genesisRoot)

	store := chaindata.NewStore()
	store.GenesisTime = 1000
	store.Time = slotTime(4)
	store.Justified = &types.Checkpoint{Epoch: 0, Root: genesisRoot[:]}
	store.Blocks[genesisRoot] = genesis
	store.Blocks[leftRoot] = left
	store.Blocks[leftChildRoot] = leftChild
	store.Blocks[rightRoot] = right

	store.LatestMessages[0] = &chaindata.LatestMessage{Epoch: 0, Root: leftChildRoot}
	store.LatestMessages[1] = &chaindata.LatestMessage{Epoch: 0, Root: leftChildRoot}
	store.LatestMessages[2] = &chaindata.LatestMessage{Epoch: 0, Root: rightRoot}

	head, err := ProcessHead(store)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, leftChildRoot, head)
}

func TestProcessHead_MissingJustifiedRoot(t *testing.T) {
	store := chaindata.NewStore()
	store.Justified = &types.Checkpoint{Epoch: 0, Root: bytesutil.ToBytes32([]byte{'m'})[:]}
	_, err := ProcessHead(store)
	require.ErrorContains(t, "is not in the store", err)
}

func bytesCompare(a, b [32]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}
