package chaindata

import (
	"context"
	"testing"
	"time"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/interop"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func TestInitializeFromGenesisState(t *testing.T) {
	s := setupService(t)
	genesisState, err := interop.GenerateGenesisState(1000, 64)
	require.NoError(t, err)

	require.NoError(t, s.InitializeFromGenesisState(context.Background(), genesisState))

	assert.Equal(t, true, s.StoreInitialized())
	require.NoError(t, s.Status())
	assert.Equal(t, uint64(1000), s.GenesisTime())

	store, err := s.CurrentStore()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), store.Time)
	assert.Equal(t, types.Slot(0), store.CurrentSlot())
	assert.Equal(t, 1, len(store.Blocks))
	assert.DeepEqual(t, store.Justified, store.Finalized)
	assert.DeepEqual(t, store.Justified, store.BestJustified)
	assert.Equal(t, types.Epoch(0), store.Finalized.Epoch)

	head := s.HeadRoot()
	require.NotNil(t, store.Block(head))
	assert.Equal(t, types.Slot(0), s.HeadSlot())
	require.NotNil(t, store.CheckpointState(store.Finalized))
}

func TestInitializeFromGenesisState_SecondAttemptFails(t *testing.T) {
	s := setupService(t)
	genesisState, err := interop.GenerateGenesisState(1000, 64)
	require.NoError(t, err)

	require.NoError(t, s.InitializeFromGenesisState(context.Background(), genesisState))
	err = s.InitializeFromGenesisState(context.Background(), genesisState)
	if err != ErrAlreadyInitialized {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeFromGenesisState_NilState(t *testing.T) {
	s := setupService(t)
	require.ErrorContains(t, "nil genesis state", s.InitializeFromGenesisState(context.Background(), nil))
}

func TestStartFromStorage_RecoversCommittedStore(t *testing.T) {
	first := setupService(t)
	genesisState, err := interop.GenerateGenesisState(1000, 64)
	require.NoError(t, err)
	require.NoError(t, first.InitializeFromGenesisState(context.Background(), genesisState))

	block, root := makeBlock(t, 1, first.HeadRoot())
	tx := first.StartTransaction()
	tx.SetTime(1012)
	tx.PutBlock(root, block, makeState(1))
	require.NoError(t, tx.Commit(context.Background()))

	second := NewService(context.Background(), &Config{DB: first.cfg.DB})
	second.startFromStorage()

	require.NoError(t, second.Status())
	store, err := second.CurrentStore()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), store.GenesisTime)
	assert.Equal(t, uint64(1012), store.Time)
	assert.Equal(t, true, store.HasBlock(root))
	assert.Equal(t, types.Epoch(0), store.Finalized.Epoch)
}

func TestStartFromStorage_UsesConfiguredInitialState(t *testing.T) {
	genesisState, err := interop.GenerateGenesisState(1000, 64)
	require.NoError(t, err)

	s := setupService(t)
	s.cfg.InitialState = genesisState
	s.startFromStorage()

	require.NoError(t, s.Status())
	assert.Equal(t, uint64(1000), s.GenesisTime())
}

func TestStartFromStorage_WaitsForGenesisTrigger(t *testing.T) {
	genesisState, err := interop.GenerateGenesisState(1000, 64)
	require.NoError(t, err)

	trigger := make(chan *types.BeaconState, 1)
	s := setupService(t)
	s.cfg.GenesisTrigger = trigger

	initialized := make(chan *StoreInitializedData, 1)
	sub := s.SubscribeStoreInitialized(initialized)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		s.startFromStorage()
		close(done)
	}()
	trigger <- genesisState

	select {
	case data := <-initialized:
		assert.Equal(t, uint64(1000), data.GenesisTime)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for store initialization from the genesis trigger")
	}
	<-done
	require.NoError(t, s.Status())
}
