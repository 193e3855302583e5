package kv

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	attaggregation "github.com/zephyrlabs/zephyr/shared/aggregation/attestations"
)

// AggregateUnaggregatedAttestations aggregates the unaggregated attestations
// and saves the newly aggregated attestations in the pool. Unaggregated
// attestations that could not be folded into an aggregate stay in place.
func (c *AttCaches) AggregateUnaggregatedAttestations(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "operations.attestations.kv.AggregateUnaggregatedAttestations")
	defer span.End()

	unaggregated, err := c.UnaggregatedAttestations()
	if err != nil {
		return err
	}
	byRoot := make(map[[32]byte][]*types.Attestation, len(unaggregated))
	for _, att := range unaggregated {
		root, err := attDataRoot(att)
		if err != nil {
			return errors.Wrap(err, "could not tree hash attestation data")
		}
		byRoot[root] = append(byRoot[root], att)
	}

	for _, group := range byRoot {
		aggregated, err := attaggregation.Aggregate(group, c.combine)
		if err != nil {
			return err
		}
		for _, att := range aggregated {
			if !isAggregated(att) {
				continue
			}
			if err := c.SaveAggregatedAttestation(att); err != nil {
				return err
			}
			// The folded single-bit contributions are retired from the
			// unaggregated view through the seen-bit record.
			if err := c.insertSeenBit(att); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveAggregatedAttestation saves an aggregated attestation in cache.
func (c *AttCaches) SaveAggregatedAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	if !isAggregated(att) {
		return errors.New("attestation is not aggregated")
	}
	has, err := c.HasAggregatedAttestation(att)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	seen, err := c.hasSeenBit(att)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}
	copied := types.CopyAttestation(att)

	c.aggregatedAttLock.Lock()
	defer c.aggregatedAttLock.Unlock()
	group, ok := c.aggregatedAtt[root]
	if !ok {
		c.aggregatedAtt[root] = []*types.Attestation{copied}
		return nil
	}
	merged, err := attaggregation.Aggregate(append(group, copied), c.combine)
	if err != nil {
		return err
	}
	c.aggregatedAtt[root] = merged
	return nil
}

// SaveAggregatedAttestations saves a list of aggregated attestations.
func (c *AttCaches) SaveAggregatedAttestations(atts []*types.Attestation) error {
	for _, att := range atts {
		if err := c.SaveAggregatedAttestation(att); err != nil {
			log.WithError(err).Debug("Could not save aggregated attestation")
		}
	}
	return nil
}

// AggregatedAttestations returns the aggregated attestations in cache.
func (c *AttCaches) AggregatedAttestations() []*types.Attestation {
	c.aggregatedAttLock.RLock()
	defer c.aggregatedAttLock.RUnlock()
	atts := make([]*types.Attestation, 0, len(c.aggregatedAtt))
	for _, group := range c.aggregatedAtt {
		atts = append(atts, group...)
	}
	return atts
}

// DeleteAggregatedAttestation deletes the aggregated attestations in cache
// whose bits are covered by the given attestation.
func (c *AttCaches) DeleteAggregatedAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	if !isAggregated(att) {
		return errors.New("attestation is not aggregated")
	}
	if err := c.insertSeenBit(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}

	c.aggregatedAttLock.Lock()
	defer c.aggregatedAttLock.Unlock()
	group, ok := c.aggregatedAtt[root]
	if !ok {
		return nil
	}
	filtered := make([]*types.Attestation, 0, len(group))
	for _, a := range group {
		contains, err := att.AggregationBits.Contains(a.AggregationBits)
		if err != nil {
			return err
		}
		if !contains {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		delete(c.aggregatedAtt, root)
	} else {
		c.aggregatedAtt[root] = filtered
	}
	return nil
}

// HasAggregatedAttestation checks if the input attestation's bits are already
// covered by the aggregated or block groups.
func (c *AttCaches) HasAggregatedAttestation(att *types.Attestation) (bool, error) {
	if err := validateNilAttestation(att); err != nil {
		return false, err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return false, errors.Wrap(err, "could not tree hash attestation data")
	}

	c.aggregatedAttLock.RLock()
	if group, ok := c.aggregatedAtt[root]; ok {
		for _, a := range group {
			contains, err := a.AggregationBits.Contains(att.AggregationBits)
			if err != nil {
				c.aggregatedAttLock.RUnlock()
				return false, err
			}
			if contains {
				c.aggregatedAttLock.RUnlock()
				return true, nil
			}
		}
	}
	c.aggregatedAttLock.RUnlock()

	c.blockAttLock.RLock()
	defer c.blockAttLock.RUnlock()
	if group, ok := c.blockAtt[root]; ok {
		for _, a := range group {
			contains, err := a.AggregationBits.Contains(att.AggregationBits)
			if err != nil {
				return false, err
			}
			if contains {
				return true, nil
			}
		}
	}
	return false, nil
}

// AggregatedAttestationCount returns the number of aggregated attestation
// keys in the pool.
func (c *AttCaches) AggregatedAttestationCount() int {
	c.aggregatedAttLock.RLock()
	defer c.aggregatedAttLock.RUnlock()
	return len(c.aggregatedAtt)
}
