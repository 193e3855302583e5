package attestations

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func setupService(t *testing.T) *Service {
	svc, err := NewService(context.Background(), &Config{Pool: NewPool(nil)})
	require.NoError(t, err)
	return svc
}

func makeAtt(slot types.Slot, index uint64, bits bitfield.Bitlist) *types.Attestation {
	blockRoot := make([]byte, 32)
	binary.LittleEndian.PutUint64(blockRoot, index)
	return &types.Attestation{
		AggregationBits: bits,
		Data: &types.AttestationData{
			Slot:            slot,
			CommitteeIndex:  types.CommitteeIndex(index),
			BeaconBlockRoot: blockRoot,
			Source:          &types.Checkpoint{Root: make([]byte, 32)},
			Target:          &types.Checkpoint{Root: make([]byte, 32)},
		},
		Signature: make([]byte, 96),
	}
}

func TestAttestationsForBlock_InclusionWindow(t *testing.T) {
	svc := setupService(t)
	pool := svc.cfg.Pool

	tooFresh := makeAtt(10, 0, bitfield.Bitlist{0b10001})
	includableAtt := makeAtt(9, 1, bitfield.Bitlist{0b10001})
	expired := makeAtt(10, 2, bitfield.Bitlist{0b10001})
	require.NoError(t, pool.SaveUnaggregatedAttestation(tooFresh))
	require.NoError(t, pool.SaveUnaggregatedAttestation(includableAtt))
	require.NoError(t, pool.SaveUnaggregatedAttestation(expired))

	// State slot 10: slot-10 attestations miss the inclusion delay, slot-9
	// ones qualify.
	atts, err := svc.AttestationsForBlock(context.Background(), &types.BeaconState{Slot: 10})
	require.NoError(t, err)
	require.Equal(t, 1, len(atts))
	assert.Equal(t, types.Slot(9), atts[0].Data.Slot)

	// State slot 43: the slot-10 attestations fell out of the one-epoch
	// window (10+32 < 43).
	atts, err = svc.AttestationsForBlock(context.Background(), &types.BeaconState{Slot: 43})
	require.NoError(t, err)
	assert.Equal(t, 0, len(atts))
}

func TestAttestationsForBlock_PrefersAggregatedAndCaps(t *testing.T) {
	svc := setupService(t)
	pool := svc.cfg.Pool

	max := params.BeaconConfig().MaxAttestations
	for i := uint64(0); i < max+10; i++ {
		require.NoError(t, pool.SaveUnaggregatedAttestation(makeAtt(1, i, bitfield.Bitlist{0b10001})))
	}
	aggregated := makeAtt(1, max+100, bitfield.Bitlist{0b10011})
	require.NoError(t, pool.SaveAggregatedAttestation(aggregated))

	atts, err := svc.AttestationsForBlock(context.Background(), &types.BeaconState{Slot: 2})
	require.NoError(t, err)
	require.Equal(t, int(max), len(atts))
	// Aggregated attestations are offered ahead of unaggregated ones.
	assert.DeepEqual(t, aggregated.Data, atts[0].Data)
}

func TestRemoveIncluded_PurgesPoolAndRecordsBlock(t *testing.T) {
	svc := setupService(t)
	pool := svc.cfg.Pool

	single := makeAtt(1, 0, bitfield.Bitlist{0b10001})
	aggregate := makeAtt(1, 1, bitfield.Bitlist{0b10011})
	require.NoError(t, pool.SaveUnaggregatedAttestation(single))
	require.NoError(t, pool.SaveAggregatedAttestation(aggregate))

	require.NoError(t, svc.RemoveIncluded(context.Background(), []*types.Attestation{single, aggregate}))

	assert.Equal(t, 0, pool.UnaggregatedAttestationCount())
	assert.Equal(t, 0, pool.AggregatedAttestationCount())
	assert.Equal(t, 2, len(pool.BlockAttestations()))

	// Included bits cannot re-enter the pending views.
	require.NoError(t, pool.SaveUnaggregatedAttestation(makeAtt(1, 0, bitfield.Bitlist{0b10001})))
	assert.Equal(t, 0, pool.UnaggregatedAttestationCount())
}
