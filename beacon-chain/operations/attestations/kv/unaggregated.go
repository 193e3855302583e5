package kv

import (
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// SaveUnaggregatedAttestation saves an unaggregated attestation in cache.
func (c *AttCaches) SaveUnaggregatedAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	if isAggregated(att) {
		return errors.New("attestation is aggregated")
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

	c.unAggregateAttLock.Lock()
	defer c.unAggregateAttLock.Unlock()
	for _, a := range c.unAggregatedAtt[root] {
		contains, err := a.AggregationBits.Contains(att.AggregationBits)
		if err != nil {
			return err
		}
		if contains {
			return nil
		}
	}
	c.unAggregatedAtt[root] = append(c.unAggregatedAtt[root], copied)
	return nil
}

// SaveUnaggregatedAttestations saves a list of unaggregated attestations.
func (c *AttCaches) SaveUnaggregatedAttestations(atts []*types.Attestation) error {
	for _, att := range atts {
		if err := c.SaveUnaggregatedAttestation(att); err != nil {
			return err
		}
	}
	return nil
}

// UnaggregatedAttestations returns all the unaggregated attestations in
// cache, excluding those whose bits were already seen in an aggregate.
func (c *AttCaches) UnaggregatedAttestations() ([]*types.Attestation, error) {
	c.unAggregateAttLock.RLock()
	defer c.unAggregateAttLock.RUnlock()
	atts := make([]*types.Attestation, 0, len(c.unAggregatedAtt))
	for _, group := range c.unAggregatedAtt {
		for _, att := range group {
			seen, err := c.hasSeenBit(att)
			if err != nil {
				return nil, err
			}
			if !seen {
				atts = append(atts, types.CopyAttestation(att))
			}
		}
	}
	return atts, nil
}

// DeleteUnaggregatedAttestation deletes an unaggregated attestation in cache.
func (c *AttCaches) DeleteUnaggregatedAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	if isAggregated(att) {
		return errors.New("attestation is aggregated")
	}
	if err := c.insertSeenBit(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}

	c.unAggregateAttLock.Lock()
	defer c.unAggregateAttLock.Unlock()
	group, ok := c.unAggregatedAtt[root]
	if !ok {
		return nil
	}
	filtered := group[:0]
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
		delete(c.unAggregatedAtt, root)
	} else {
		c.unAggregatedAtt[root] = filtered
	}
	return nil
}

// UnaggregatedAttestationCount returns the number of unaggregated
// attestations in the pool.
func (c *AttCaches) UnaggregatedAttestationCount() int {
	c.unAggregateAttLock.RLock()
	defer c.unAggregateAttLock.RUnlock()
	count := 0
	for _, group := range c.unAggregatedAtt {
		count += len(group)
	}
	return count
}
