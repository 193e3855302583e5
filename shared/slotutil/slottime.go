// Package slotutil includes ticker and timer factories, along with the slot
// and epoch arithmetic that maps wall-clock time onto the beacon chain.
package slotutil

import (
	"time"

	types "github.com/prysmaticlabs/eth2-types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// StartTime returns the start time of the given slot in terms of the unix
// genesis time.
func StartTime(genesis uint64, slot types.Slot) time.Time {
	duration := time.Second * time.Duration(slot.Mul(params.BeaconConfig().SecondsPerSlot))
	startTime := time.Unix(int64(genesis), 0).Add(duration)
	return startTime
}

// SlotStartSeconds returns the unix second at which the given slot begins.
func SlotStartSeconds(genesis uint64, slot types.Slot) uint64 {
	return genesis + uint64(slot.Mul(params.BeaconConfig().SecondsPerSlot))
}

// AttestationDueSeconds returns the unix second of the slot's attestation
// deadline, one third into the slot.
func AttestationDueSeconds(genesis uint64, slot types.Slot) uint64 {
	return SlotStartSeconds(genesis, slot) + params.BeaconConfig().SecondsPerSlot/3
}

// AggregationDueSeconds returns the unix second of the slot's aggregation
// deadline, two thirds into the slot.
func AggregationDueSeconds(genesis uint64, slot types.Slot) uint64 {
	return SlotStartSeconds(genesis, slot) + 2*params.BeaconConfig().SecondsPerSlot/3
}

// SlotsSinceGenesis returns the number of slots since the provided genesis
// time.
func SlotsSinceGenesis(genesis time.Time) types.Slot {
	if genesis.After(time.Now()) {
		return 0
	}
	return types.Slot(uint64(time.Since(genesis).Seconds()) / params.BeaconConfig().SecondsPerSlot)
}

// CurrentSlot returns the current slot as determined by the local clock and
// the provided genesis time in unix seconds.
func CurrentSlot(genesisTimeSec uint64) types.Slot {
	now := uint64(time.Now().Unix())
	return SlotAtTime(genesisTimeSec, now)
}

// SlotAtTime returns the slot in effect at the given unix second. Pre-genesis
// times map to the genesis slot.
func SlotAtTime(genesisTimeSec, timeSec uint64) types.Slot {
	if timeSec < genesisTimeSec {
		return params.BeaconConfig().GenesisSlot
	}
	return types.Slot((timeSec - genesisTimeSec) / params.BeaconConfig().SecondsPerSlot)
}

// ToEpoch returns the epoch number of the input slot.
func ToEpoch(slot types.Slot) types.Epoch {
	return types.Epoch(slot.DivSlot(params.BeaconConfig().SlotsPerEpoch))
}

// EpochStart returns the first slot number of the given epoch.
func EpochStart(epoch types.Epoch) types.Slot {
	return params.BeaconConfig().SlotsPerEpoch.Mul(uint64(epoch))
}

// IsEpochStart returns true if the given slot number is an epoch starting slot
// number.
func IsEpochStart(slot types.Slot) bool {
	return slot.ModSlot(params.BeaconConfig().SlotsPerEpoch) == 0
}

// DivideSlotBy divides the SECONDS_PER_SLOT configuration
// parameter by a specified number. It returns a value of time.Duration
// in milliseconds, useful for dividing values such as 1 second into
// millisecond-based durations.
func DivideSlotBy(timesPerSlot int64) time.Duration {
	return time.Duration(int64(params.BeaconConfig().SecondsPerSlot*1000)/timesPerSlot) * time.Millisecond
}
