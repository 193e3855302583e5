// Package attestations defines the aggregating attestation pool: the service
// that folds gossiped single-bit attestations into aggregates, stages
// attestations for fork choice, and serves the inclusion view for block
// production.
package attestations

import (
	"context"

	"github.com/zephyrlabs/zephyr/beacon-chain/operations/attestations/kv"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	attaggregation "github.com/zephyrlabs/zephyr/shared/aggregation/attestations"
)

// Pool defines the necessary methods for the attestation pool to serve fork
// choice and block production. Aggregated attestations are consumed by the
// proposer path, unaggregated ones by the aggregation routine.
type Pool interface {
	// For aggregated attestations.
	AggregateUnaggregatedAttestations(ctx context.Context) error
	SaveAggregatedAttestation(att *types.Attestation) error
	SaveAggregatedAttestations(atts []*types.Attestation) error
	AggregatedAttestations() []*types.Attestation
	DeleteAggregatedAttestation(att *types.Attestation) error
	HasAggregatedAttestation(att *types.Attestation) (bool, error)
	AggregatedAttestationCount() int
	// For unaggregated attestations.
	SaveUnaggregatedAttestation(att *types.Attestation) error
	SaveUnaggregatedAttestations(atts []*types.Attestation) error
	UnaggregatedAttestations() ([]*types.Attestation, error)
	DeleteUnaggregatedAttestation(att *types.Attestation) error
	UnaggregatedAttestationCount() int
	// For attestations that were included in a block.
	SaveBlockAttestation(att *types.Attestation) error
	SaveBlockAttestations(atts []*types.Attestation) error
	BlockAttestations() []*types.Attestation
	DeleteBlockAttestation(att *types.Attestation) error
	// For attestations awaiting fork-choice processing.
	SaveForkchoiceAttestation(att *types.Attestation) error
	SaveForkchoiceAttestations(atts []*types.Attestation) error
	ForkchoiceAttestations() []*types.Attestation
	DeleteForkchoiceAttestation(att *types.Attestation) error
	ForkchoiceAttestationCount() int
	// Expiry.
	PruneExpired(slot types.Slot) int
	// Combiner returns the signature combiner the pool aggregates with.
	Combiner() attaggregation.SignatureCombiner
}

// NewPool initializes a new attestation pool.
func NewPool(combine attaggregation.SignatureCombiner) *kv.AttCaches {
	return kv.NewAttCaches(combine)
}
