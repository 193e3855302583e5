package forkchoice

import "github.com/pkg/errors"

var (
	// ErrParentUnknown is returned when a block's parent is not in the
	// store. Benign; the caller routes the block to the pending bucket.
	ErrParentUnknown = errors.New("block parent is not in the store")

	// ErrFutureSlot is returned when a block or attestation cannot be
	// processed until a later slot. Benign; the caller routes the item to
	// the future bucket.
	ErrFutureSlot = errors.New("slot is in the future")

	// ErrUnknownBlock is returned when an attestation votes for a block
	// root that is not in the store. Benign; routed to pending.
	ErrUnknownBlock = errors.New("attested block is not in the store")

	// ErrInvalidBlock is a permanent rejection of a block.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrInvalidAttestation is a permanent rejection of an attestation.
	ErrInvalidAttestation = errors.New("invalid attestation")
)
