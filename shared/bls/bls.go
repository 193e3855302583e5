// Package bls wraps the herumi BLS12-381 backend behind the signature
// aggregation contract of the attestation pool. Verification lives in the
// state-transition function; this package only folds signatures.
package bls

import (
	"sync"

	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/pkg/errors"
)

var initOnce sync.Once

// Init sets up the BLS12-381 curve in ETH mode. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		if err := bls.Init(bls.BLS12_381); err != nil {
			panic(err)
		}
		if err := bls.SetETHmode(bls.EthModeDraft07); err != nil {
			panic(err)
		}
		// Check subgroup order for pubkeys and signatures.
		bls.VerifyPublicKeyOrder(true)
		bls.VerifySignatureOrder(true)
	})
}

// CombineSignatures folds serialized signatures into one aggregate signature.
// It satisfies the attestation pool's SignatureCombiner contract.
func CombineSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, errors.New("nothing to aggregate")
	}
	Init()
	agg := new(bls.Sign)
	if err := agg.Deserialize(sigs[0]); err != nil {
		return nil, errors.Wrap(err, "could not deserialize signature")
	}
	for _, raw := range sigs[1:] {
		sig := new(bls.Sign)
		if err := sig.Deserialize(raw); err != nil {
			return nil, errors.Wrap(err, "could not deserialize signature")
		}
		agg.Add(sig)
	}
	return agg.Serialize(), nil
}
