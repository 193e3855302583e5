package attestations

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/aggregation"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func makeAtt(bits bitfield.Bitlist, sig byte) *types.Attestation {
	signature := make([]byte, 96)
	signature[0] = sig
	return &types.Attestation{
		AggregationBits: bits,
		Data: &types.AttestationData{
			BeaconBlockRoot: make([]byte, 32),
			Source:          &types.Checkpoint{Root: make([]byte, 32)},
			Target:          &types.Checkpoint{Root: make([]byte, 32)},
		},
		Signature: signature,
	}
}

func TestAggregatePair_OrsBitsAndCombinesSignatures(t *testing.T) {
	a1 := makeAtt(bitfield.Bitlist{0b10001}, 0x01)
	a2 := makeAtt(bitfield.Bitlist{0b10010}, 0x02)

	got, err := AggregatePair(a1, a2, NaiveSignatureCombiner)
	require.NoError(t, err)
	assert.DeepEqual(t, bitfield.Bitlist{0b10011}, got.AggregationBits)
	assert.Equal(t, byte(0x03), got.Signature[0])

	// The inputs stay untouched.
	assert.DeepEqual(t, bitfield.Bitlist{0b10001}, a1.AggregationBits)
	assert.DeepEqual(t, bitfield.Bitlist{0b10010}, a2.AggregationBits)
}

func TestAggregatePair_RejectsOverlap(t *testing.T) {
	a1 := makeAtt(bitfield.Bitlist{0b10011}, 0x01)
	a2 := makeAtt(bitfield.Bitlist{0b10001}, 0x02)

	_, err := AggregatePair(a1, a2, NaiveSignatureCombiner)
	assert.Equal(t, aggregation.ErrBitsOverlap, err)
}

func TestAggregatePair_RejectsDifferentLengths(t *testing.T) {
	a1 := makeAtt(bitfield.Bitlist{0b10001}, 0x01)
	a2 := makeAtt(bitfield.Bitlist{0b00010, 0b1}, 0x02)

	_, err := AggregatePair(a1, a2, NaiveSignatureCombiner)
	assert.Equal(t, aggregation.ErrBitsDifferentLen, err)
}

func TestAggregate_FoldsDisjointSet(t *testing.T) {
	atts := []*types.Attestation{
		makeAtt(bitfield.Bitlist{0b10001}, 0x01),
		makeAtt(bitfield.Bitlist{0b10010}, 0x02),
		makeAtt(bitfield.Bitlist{0b10100}, 0x04),
	}
	got, err := Aggregate(atts, NaiveSignatureCombiner)
	require.NoError(t, err)
	require.Equal(t, 1, len(got))
	assert.DeepEqual(t, bitfield.Bitlist{0b10111}, got[0].AggregationBits)
	assert.Equal(t, byte(0x07), got[0].Signature[0])
}

func TestAggregate_LeavesOverlappingApart(t *testing.T) {
	atts := []*types.Attestation{
		makeAtt(bitfield.Bitlist{0b10011}, 0x01),
		makeAtt(bitfield.Bitlist{0b10110}, 0x02),
	}
	got, err := Aggregate(atts, NaiveSignatureCombiner)
	require.NoError(t, err)
	assert.Equal(t, 2, len(got))
}

func TestNaiveSignatureCombiner_Commutative(t *testing.T) {
	a := []byte{0x01, 0xf0}
	b := []byte{0x02, 0x0f}

	ab, err := NaiveSignatureCombiner([][]byte{a, b})
	require.NoError(t, err)
	ba, err := NaiveSignatureCombiner([][]byte{b, a})
	require.NoError(t, err)
	assert.DeepEqual(t, ab, ba)
	assert.DeepEqual(t, []byte{0x03, 0xff}, ab)

	_, err = NaiveSignatureCombiner([][]byte{a, {0x01}})
	assert.Equal(t, aggregation.ErrBitsDifferentLen, err)
}
