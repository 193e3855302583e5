package attestations

import (
	"context"

	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// AttestationsForBlock returns the pool attestations eligible for inclusion
// in a block built on top of the given state, aggregated first, capped at
// MaxAttestations.
func (s *Service) AttestationsForBlock(ctx context.Context, state *types.BeaconState) ([]*types.Attestation, error) {
	_, span := trace.StartSpan(ctx, "operations.attestations.AttestationsForBlock")
	defer span.End()

	unaggregated, err := s.cfg.Pool.UnaggregatedAttestations()
	if err != nil {
		return nil, err
	}
	candidates := append(s.cfg.Pool.AggregatedAttestations(), unaggregated...)

	max := params.BeaconConfig().MaxAttestations
	atts := make([]*types.Attestation, 0, max)
	for _, att := range candidates {
		if uint64(len(atts)) >= max {
			break
		}
		if !includable(att, state.Slot) {
			continue
		}
		atts = append(atts, att)
	}
	return atts, nil
}

// includable reports whether the attestation's slot window permits inclusion
// at the given state slot.
func includable(att *types.Attestation, stateSlot types.Slot) bool {
	if att.Data == nil {
		return false
	}
	minSlot := att.Data.Slot.Add(uint64(params.BeaconConfig().MinAttestationInclusionDelay))
	maxSlot := att.Data.Slot.Add(uint64(params.BeaconConfig().SlotsPerEpoch))
	return minSlot <= stateSlot && stateSlot <= maxSlot
}

// RemoveIncluded purges attestations that made it into an imported block from
// the pending views and records them in the block group.
func (s *Service) RemoveIncluded(ctx context.Context, atts []*types.Attestation) error {
	_, span := trace.StartSpan(ctx, "operations.attestations.RemoveIncluded")
	defer span.End()

	for _, att := range atts {
		if att == nil || att.Data == nil {
			continue
		}
		if err := s.cfg.Pool.SaveBlockAttestation(att); err != nil {
			return err
		}
		if att.AggregationBits.Count() > 1 {
			if err := s.cfg.Pool.DeleteAggregatedAttestation(att); err != nil {
				return err
			}
		} else {
			if err := s.cfg.Pool.DeleteUnaggregatedAttestation(att); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnSlot expires attestations that fell out of the inclusion window.
func (s *Service) OnSlot(slot types.Slot) {
	if pruned := s.cfg.Pool.PruneExpired(slot); pruned > 0 {
		expiredAttsCount.Add(float64(pruned))
		log.WithField("count", pruned).Debug("Expired stale attestations")
	}
}
