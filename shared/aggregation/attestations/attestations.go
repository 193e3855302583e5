// Package attestations implements attestation aggregation: folding
// attestations that share the same data and have disjoint aggregation bits
// into a single aggregate. The signature backend is external; callers inject
// a SignatureCombiner and this package only manages the bitfields.
package attestations

import (
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/aggregation"
)

// SignatureCombiner folds attestation signatures into one aggregate
// signature. The node wires the real cryptographic backend here.
type SignatureCombiner func(sigs [][]byte) ([]byte, error)

// NaiveSignatureCombiner folds signatures byte-wise. It stands in when no
// signature backend is wired; the result is deterministic and commutative.
func NaiveSignatureCombiner(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, aggregation.ErrBitsDifferentLen
	}
	out := make([]byte, len(sigs[0]))
	copy(out, sigs[0])
	for _, sig := range sigs[1:] {
		if len(sig) != len(out) {
			return nil, aggregation.ErrBitsDifferentLen
		}
		for i := range out {
			out[i] ^= sig[i]
		}
	}
	return out, nil
}

// AggregatePair aggregates the pair of attestations a1 and a2.
func AggregatePair(a1, a2 *types.Attestation, combine SignatureCombiner) (*types.Attestation, error) {
	if a1.AggregationBits.Len() != a2.AggregationBits.Len() {
		return nil, aggregation.ErrBitsDifferentLen
	}
	overlaps, err := a1.AggregationBits.Overlaps(a2.AggregationBits)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, aggregation.ErrBitsOverlap
	}

	baseAtt := types.CopyAttestation(a1)
	newAtt := types.CopyAttestation(a2)
	if newAtt.AggregationBits.Count() > baseAtt.AggregationBits.Count() {
		baseAtt, newAtt = newAtt, baseAtt
	}

	contains, err := baseAtt.AggregationBits.Contains(newAtt.AggregationBits)
	if err != nil {
		return nil, err
	}
	if contains {
		return baseAtt, nil
	}

	newBits, err := baseAtt.AggregationBits.Or(newAtt.AggregationBits)
	if err != nil {
		return nil, err
	}
	sig, err := combine([][]byte{baseAtt.Signature, newAtt.Signature})
	if err != nil {
		return nil, err
	}
	baseAtt.Signature = sig
	baseAtt.AggregationBits = newBits
	return baseAtt, nil
}

// Aggregate aggregates attestations sharing the same data. The minimal set of
// attestations covering the input bits is returned. Aggregation occurs
// in-place; clone the input first if the originals must survive.
func Aggregate(atts []*types.Attestation, combine SignatureCombiner) ([]*types.Attestation, error) {
	for {
		merged := false
		for i := 0; i < len(atts) && !merged; i++ {
			for j := i + 1; j < len(atts); j++ {
				if atts[i].AggregationBits.Len() != atts[j].AggregationBits.Len() {
					continue
				}
				overlaps, err := atts[i].AggregationBits.Overlaps(atts[j].AggregationBits)
				if err != nil {
					return nil, err
				}
				if overlaps {
					continue
				}
				pair, err := AggregatePair(atts[i], atts[j], combine)
				if err != nil {
					return nil, err
				}
				atts[i] = pair
				atts = append(atts[:j], atts[j+1:]...)
				merged = true
				break
			}
		}
		if !merged {
			return atts, nil
		}
	}
}
