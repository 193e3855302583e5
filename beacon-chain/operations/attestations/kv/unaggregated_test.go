package kv

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

func TestSaveUnaggregatedAttestation_RejectsAggregated(t *testing.T) {
	cache := NewAttCaches(nil)
	err := cache.SaveUnaggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10011}))
	require.NotNil(t, err)
	assert.Equal(t, 0, cache.UnaggregatedAttestationCount())
}

func TestSaveUnaggregatedAttestation_RoundTrip(t *testing.T) {
	cache := NewAttCaches(nil)
	att := makeAtt(1, bitfield.Bitlist{0b10001})
	require.NoError(t, cache.SaveUnaggregatedAttestation(att))
	require.Equal(t, 1, cache.UnaggregatedAttestationCount())

	// Duplicate bits collapse into the existing entry.
	require.NoError(t, cache.SaveUnaggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10001})))
	require.Equal(t, 1, cache.UnaggregatedAttestationCount())

	require.NoError(t, cache.DeleteUnaggregatedAttestation(att))
	assert.Equal(t, 0, cache.UnaggregatedAttestationCount())

	// A deleted attestation is recorded as seen and cannot be resurrected.
	require.NoError(t, cache.SaveUnaggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10001})))
	assert.Equal(t, 0, cache.UnaggregatedAttestationCount())
}

func TestUnaggregatedAttestations_SkipsSeenBits(t *testing.T) {
	cache := NewAttCaches(nil)
	require.NoError(t, cache.SaveUnaggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10001})))
	require.NoError(t, cache.SaveUnaggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10010})))

	// An aggregate covering bits 0 and 2 arrives through the delete path.
	require.NoError(t, cache.DeleteAggregatedAttestation(makeAtt(1, bitfield.Bitlist{0b10101})))

	atts, err := cache.UnaggregatedAttestations()
	require.NoError(t, err)
	require.Equal(t, 1, len(atts))
	assert.DeepEqual(t, bitfield.Bitlist{0b10010}, atts[0].AggregationBits)
}
