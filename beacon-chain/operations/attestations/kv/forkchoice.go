package kv

import (
	"github.com/pkg/errors"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// SaveForkchoiceAttestation saves an attestation awaiting fork-choice
// processing.
func (c *AttCaches) SaveForkchoiceAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}
	copied := types.CopyAttestation(att)

	c.forkchoiceAttLock.Lock()
	defer c.forkchoiceAttLock.Unlock()
	for _, a := range c.forkchoiceAtt[root] {
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
	c.forkchoiceAtt[root] = append(c.forkchoiceAtt[root], copied)
	return nil
}

// SaveForkchoiceAttestations saves a list of fork-choice attestations.
func (c *AttCaches) SaveForkchoiceAttestations(atts []*types.Attestation) error {
	for _, att := range atts {
		if err := c.SaveForkchoiceAttestation(att); err != nil {
			return err
		}
	}
	return nil
}

// ForkchoiceAttestations returns the attestations awaiting fork-choice
// processing.
func (c *AttCaches) ForkchoiceAttestations() []*types.Attestation {
	c.forkchoiceAttLock.RLock()
	defer c.forkchoiceAttLock.RUnlock()
	atts := make([]*types.Attestation, 0, len(c.forkchoiceAtt))
	for _, group := range c.forkchoiceAtt {
		atts = append(atts, group...)
	}
	return atts
}

// DeleteForkchoiceAttestation deletes a fork-choice attestation from cache.
func (c *AttCaches) DeleteForkchoiceAttestation(att *types.Attestation) error {
	if err := validateNilAttestation(att); err != nil {
		return err
	}
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}

	c.forkchoiceAttLock.Lock()
	defer c.forkchoiceAttLock.Unlock()
	group, ok := c.forkchoiceAtt[root]
	if !ok {
		return nil
	}
	filtered := make([]*types.Attestation, 0, len(group))
	for _, a := range group {
		keep := true
		if a.AggregationBits.Len() == att.AggregationBits.Len() {
			contains, err := att.AggregationBits.Contains(a.AggregationBits)
			if err != nil {
				return err
			}
			keep = !contains
		}
		if keep {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		delete(c.forkchoiceAtt, root)
	} else {
		c.forkchoiceAtt[root] = filtered
	}
	return nil
}

// ForkchoiceAttestationCount returns the number of fork-choice attestations
// keys in the pool.
func (c *AttCaches) ForkchoiceAttestationCount() int {
	c.forkchoiceAttLock.RLock()
	defer c.forkchoiceAttLock.RUnlock()
	return len(c.forkchoiceAtt)
}
