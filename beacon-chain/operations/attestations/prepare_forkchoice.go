package attestations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	attaggregation "github.com/zephyrlabs/zephyr/shared/aggregation/attestations"
)

// stageForkchoiceAtts batches pool attestations into the fork-choice group.
// Runs at every third of the slot.
func (s *Service) stageForkchoiceAtts() {
	if err := s.batchForkchoiceAtts(s.ctx); err != nil {
		log.WithError(err).Error("Could not prepare attestations for fork choice")
	}
}

// batchForkchoiceAtts collects attestations from the unaggregated, aggregated
// and block groups, consolidates them by data root, and saves the aggregates
// in the fork-choice group.
func (s *Service) batchForkchoiceAtts(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "operations.attestations.batchForkchoiceAtts")
	defer span.End()

	unaggregated, err := s.cfg.Pool.UnaggregatedAttestations()
	if err != nil {
		return err
	}
	atts := append(unaggregated, s.cfg.Pool.AggregatedAttestations()...)
	atts = append(atts, s.cfg.Pool.BlockAttestations()...)

	attsByDataRoot := make(map[[32]byte][]*types.Attestation, len(atts))
	for _, att := range atts {
		seen, err := s.seenForForkchoice(att)
		if err != nil {
			return err
		}
		if seen {
			continue
		}
		root, err := types.AttestationDataRoot(att.Data)
		if err != nil {
			return err
		}
		attsByDataRoot[root] = append(attsByDataRoot[root], att)
	}

	for _, group := range attsByDataRoot {
		cloned := make([]*types.Attestation, len(group))
		for i, a := range group {
			cloned[i] = types.CopyAttestation(a)
		}
		aggregated, err := attaggregation.Aggregate(cloned, s.cfg.Pool.Combiner())
		if err != nil {
			return err
		}
		if err := s.cfg.Pool.SaveForkchoiceAttestations(aggregated); err != nil {
			return err
		}
	}

	for _, a := range s.cfg.Pool.BlockAttestations() {
		if err := s.cfg.Pool.DeleteBlockAttestation(a); err != nil {
			return err
		}
	}
	return nil
}

// seenForForkchoice reports whether the attestation's bits were already
// staged for fork choice, and records them if not.
func (s *Service) seenForForkchoice(att *types.Attestation) (bool, error) {
	root, err := types.AttestationDataRoot(att.Data)
	if err != nil {
		return false, err
	}
	incomingBits := att.AggregationBits
	if saved, ok := s.forkchoiceProcessedRoots.Get(root); ok {
		savedBits, ok := saved.(bitfield.Bitlist)
		if !ok {
			return false, errors.New("not a bit field")
		}
		if savedBits.Len() == incomingBits.Len() {
			contains, err := savedBits.Contains(incomingBits)
			if err != nil {
				return false, err
			}
			if contains {
				return true, nil
			}
			incomingBits, err = incomingBits.Or(savedBits)
			if err != nil {
				return false, err
			}
		}
	}
	s.forkchoiceProcessedRoots.Add(root, incomingBits)
	return false, nil
}
