package types

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// AttestationData is the slot/committee/vote triple a validator signs over.
type AttestationData struct {
	Slot            Slot
	CommitteeIndex  CommitteeIndex
	BeaconBlockRoot []byte `ssz-size:"32"`
	Source          *Checkpoint
	Target          *Checkpoint
}

// Attestation is a signed, possibly aggregated, vote for a head/target/source
// triple. AggregationBits marks the committee members whose signatures are
// folded into Signature.
type Attestation struct {
	AggregationBits bitfield.Bitlist `ssz-max:"2048"`
	Data            *AttestationData
	Signature       []byte `ssz-size:"96"`
}

// IndexedAttestation is an attestation with its attesting validator indices
// expanded, as used inside attester slashings.
type IndexedAttestation struct {
	AttestingIndices []uint64 `ssz-max:"2048"`
	Data             *AttestationData
	Signature        []byte `ssz-size:"96"`
}

// AttesterSlashing holds two conflicting indexed attestations by overlapping
// validator sets.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

// BeaconBlockHeader is a block with its body replaced by the body root.
type BeaconBlockHeader struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    []byte `ssz-size:"32"`
	StateRoot     []byte `ssz-size:"32"`
	BodyRoot      []byte `ssz-size:"32"`
}

// SignedBeaconBlockHeader is a block header plus the proposer signature.
type SignedBeaconBlockHeader struct {
	Header    *BeaconBlockHeader
	Signature []byte `ssz-size:"96"`
}

// ProposerSlashing holds two conflicting signed headers by the same proposer
// for the same slot.
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

// VoluntaryExit requests a validator's orderly exit from the registry.
type VoluntaryExit struct {
	Epoch          Epoch
	ValidatorIndex ValidatorIndex
}

// SignedVoluntaryExit is a voluntary exit plus the validator signature.
type SignedVoluntaryExit struct {
	Exit      *VoluntaryExit
	Signature []byte `ssz-size:"96"`
}

// DepositData is the deposit message a staker signs on the Eth1 chain.
type DepositData struct {
	Pubkey                []byte `ssz-size:"48"`
	WithdrawalCredentials []byte `ssz-size:"32"`
	Amount                uint64
	Signature             []byte `ssz-size:"96"`
}

// Deposit carries the deposit data together with its merkle proof against the
// Eth1 deposit contract tree.
type Deposit struct {
	Proof [][]byte `ssz-size:"33,32"`
	Data  *DepositData
}

// Eth1Data is the deposit-contract view voted on by block proposers.
type Eth1Data struct {
	DepositRoot  []byte `ssz-size:"32"`
	DepositCount uint64
	BlockHash    []byte `ssz-size:"32"`
}
