// Package types defines the consensus data structures exchanged between the
// beacon node services: blocks, attestations, operations and the minimal
// beacon state view the control plane needs.
package types

import (
	eth2types "github.com/prysmaticlabs/eth2-types"
)

// Slot represents a single slot.
type Slot = eth2types.Slot

// Epoch represents a single epoch.
type Epoch = eth2types.Epoch

// ValidatorIndex in the validator registry.
type ValidatorIndex = eth2types.ValidatorIndex

// CommitteeIndex of an attestation committee within a slot.
type CommitteeIndex = eth2types.CommitteeIndex
