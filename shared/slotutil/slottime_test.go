package slotutil

import (
	"testing"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
)

func TestSlotAtTime(t *testing.T) {
	tests := []struct {
		genesis uint64
		time    uint64
		want    types.Slot
	}{
		{genesis: 1000, time: 1000, want: 0},
		{genesis: 1000, time: 1011, want: 0},
		{genesis: 1000, time: 1012, want: 1},
		{genesis: 1000, time: 1023, want: 1},
		{genesis: 1000, time: 1240, want: 20},
		{genesis: 1000, time: 999, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SlotAtTime(tt.genesis, tt.time))
	}
}

func TestSlotStartSeconds(t *testing.T) {
	assert.Equal(t, uint64(1000), SlotStartSeconds(1000, 0))
	assert.Equal(t, uint64(1012), SlotStartSeconds(1000, 1))
	assert.Equal(t, uint64(1240), SlotStartSeconds(1000, 20))
}

func TestPhaseDeadlines(t *testing.T) {
	assert.Equal(t, uint64(1004), AttestationDueSeconds(1000, 0))
	assert.Equal(t, uint64(1008), AggregationDueSeconds(1000, 0))
	assert.Equal(t, uint64(1016), AttestationDueSeconds(1000, 1))
	assert.Equal(t, uint64(1020), AggregationDueSeconds(1000, 1))
}

func TestToEpoch(t *testing.T) {
	assert.Equal(t, types.Epoch(0), ToEpoch(0))
	assert.Equal(t, types.Epoch(0), ToEpoch(31))
	assert.Equal(t, types.Epoch(1), ToEpoch(32))
	assert.Equal(t, types.Epoch(2), ToEpoch(64))
}

func TestEpochStart(t *testing.T) {
	assert.Equal(t, types.Slot(0), EpochStart(0))
	assert.Equal(t, types.Slot(32), EpochStart(1))
	assert.Equal(t, types.Slot(64), EpochStart(2))
}

func TestIsEpochStart(t *testing.T) {
	assert.Equal(t, true, IsEpochStart(0))
	assert.Equal(t, false, IsEpochStart(1))
	assert.Equal(t, true, IsEpochStart(32))
	assert.Equal(t, false, IsEpochStart(63))
}
