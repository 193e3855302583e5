package types

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-ssz"
)

// BlockRoot returns the hash tree root of the unsigned block, the root blocks
// are keyed by throughout the node.
func BlockRoot(b *BeaconBlock) ([32]byte, error) {
	if b == nil {
		return [32]byte{}, errors.New("nil block")
	}
	return ssz.HashTreeRoot(b)
}

// SignedBlockRoot returns the hash tree root of the inner block of a signed
// block.
func SignedBlockRoot(b *SignedBeaconBlock) ([32]byte, error) {
	if b == nil || b.Block == nil {
		return [32]byte{}, errors.New("nil block")
	}
	return ssz.HashTreeRoot(b.Block)
}

// AttestationDataRoot returns the hash tree root of attestation data, used to
// group attestations that share the same vote.
func AttestationDataRoot(d *AttestationData) ([32]byte, error) {
	if d == nil {
		return [32]byte{}, errors.New("nil attestation data")
	}
	return ssz.HashTreeRoot(d)
}

// HashTreeRoot of an arbitrary ssz-capable container.
func HashTreeRoot(v interface{}) ([32]byte, error) {
	return ssz.HashTreeRoot(v)
}
