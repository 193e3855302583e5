package kv

import (
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// SaveBlockAttestation saves an attestation that was included in a block, so
// the pool stops offering its bits for future inclusion.
func (c *AttCaches) SaveBlockAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}
	copied := types.CopyAttestation(att)

	c.blockAttLock.Lock()
	defer c.blockAttLock.Unlock()
	for _, a := range c.blockAtt[root] {
		if a.AggregationBits.Len() != att.AggregationBits.Len() {
			continue
		}
		contains, err := a.AggregationBits.Contains(att.AggregationBits)
		if err != nil {
			return err
		}
		if contains {
			return nil
		}
	}
	c.blockAtt[root] = append(c.blockAtt[root], copied)
	return nil
}

// SaveBlockAttestations saves a list of block attestations.
func (c *AttCaches) SaveBlockAttestations(atts []*types.Attestation) error {
	for _, att := range atts {
		if err := c.SaveBlockAttestation(att); err != nil {
			return err
		}
	}
	return nil
}

// BlockAttestations returns the attestations that have been included in
// blocks.
func (c *AttCaches) BlockAttestations() []*types.Attestation {
	c.blockAttLock.RLock()
	defer c.blockAttLock.RUnlock()
	atts := make([]*types.Attestation, 0, len(c.blockAtt))
	for _, group := range c.blockAtt {
		atts = append(atts, group...)
	}
	return atts
}

// DeleteBlockAttestation deletes a block attestation from cache.
func (c *AttCaches) DeleteBlockAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}

	c.blockAttLock.Lock()
	defer c.blockAttLock.Unlock()
	group, ok := c.blockAtt[root]
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
		delete(c.blockAtt, root)
	} else {
		c.blockAtt[root] = filtered
	}
	return nil
}
