// Package kv is the in-memory key-value backing of the aggregating
// attestation pool. Attestations are grouped by the hash tree root of their
// data into four views: unaggregated, aggregated, included-in-block, and
// pending fork-choice processing.
package kv

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	attaggregation "github.com/zephyrlabs/zephyr/shared/aggregation/attestations"
)

// Number of attestation data roots tracked for seen-bit deduplication.
const seenAttSize = 1 << 14

// AttCaches defines the caches used to satisfy the attestation pool
// interface. Each group is a KV store keyed by attestation data root.
type AttCaches struct {
	unAggregateAttLock sync.RWMutex
	unAggregatedAtt    map[[32]byte][]*types.Attestation
	aggregatedAttLock  sync.RWMutex
	aggregatedAtt      map[[32]byte][]*types.Attestation
	forkchoiceAttLock  sync.RWMutex
	forkchoiceAtt      map[[32]byte][]*types.Attestation
	blockAttLock       sync.RWMutex
	blockAtt           map[[32]byte][]*types.Attestation
	seenAtt            *lru.Cache

	combine attaggregation.SignatureCombiner
}

// NewAttCaches initializes an attestation pool consisting of multiple KV
// stores for the various kinds of attestations. A nil combiner falls back to
// the naive byte-wise signature combiner.
func NewAttCaches(combine attaggregation.SignatureCombiner) *AttCaches {
	if combine == nil {
		combine = attaggregation.NaiveSignatureCombiner
	}
	seen, err := lru.New(seenAttSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &AttCaches{
		unAggregatedAtt: make(map[[32]byte][]*types.Attestation),
		aggregatedAtt:   make(map[[32]byte][]*types.Attestation),
		forkchoiceAtt:   make(map[[32]byte][]*types.Attestation),
		blockAtt:        make(map[[32]byte][]*types.Attestation),
		seenAtt:         seen,
		combine:         combine,
	}
}

// Combiner returns the signature combiner the caches aggregate with.
func (c *AttCaches) Combiner() attaggregation.SignatureCombiner {
	return c.combine
}

func validateNilAttestation(att *types.Attestation) error {
	if att == nil {
		return errors.New("attestation can't be nil")
	}
	if att.Data == nil {
		return errors.New("attestation's data can't be nil")
	}
	if att.AggregationBits == nil {
		return errors.New("attestation's bitfield can't be nil")
	}
	return nil
}

func isAggregated(att *types.Attestation) bool {
	return att.AggregationBits.Count() > 1
}

func attDataRoot(att *types.Attestation) ([32]byte, error) {
	return types.AttestationDataRoot(att.Data)
}
