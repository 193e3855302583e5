package kv

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/sirupsen/logrus"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

var log = logrus.WithField("prefix", "attpool")

func (c *AttCaches) insertSeenBit(att *types.Attestation) error {
	root, err := attDataRoot(att)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}
	if v, ok := c.seenAtt.Get(root); ok {
		seenBits, ok := v.([]bitfield.Bitlist)
		if !ok {
			return errors.New("could not convert to bitlist type")
		}
		alreadyExists := false
		for _, bit := range seenBits {
			if bit.Len() != att.AggregationBits.Len() {
				continue
			}
			contains, err := bit.Contains(att.AggregationBits)
			if err != nil {
				return err
			}
			if contains {
				alreadyExists = true
				break
			}
		}
		if !alreadyExists {
			seenBits = append(seenBits, att.AggregationBits)
		}
		c.seenAtt.Add(root, seenBits)
		return nil
	}
	c.seenAtt.Add(root, []bitfield.Bitlist{att.AggregationBits})
	return nil
}

func (c *AttCaches) hasSeenBit(att *types.Attestation) (bool, error) {
	root, err := attDataRoot(att)
	if err != nil {
		return false, errors.Wrap(err, "could not tree hash attestation data")
	}
	if v, ok := c.seenAtt.Get(root); ok {
		seenBits, ok := v.([]bitfield.Bitlist)
		if !ok {
			return false, errors.New("could not convert to bitlist type")
		}
		for _, bit := range seenBits {
			if bit.Len() != att.AggregationBits.Len() {
				continue
			}
			contains, err := bit.Contains(att.AggregationBits)
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
