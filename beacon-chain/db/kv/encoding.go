package kv

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-ssz"
)

// encode marshals an ssz-capable container and snappy-compresses the result.
func encode(msg interface{}) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("cannot encode nil message")
	}
	enc, err := ssz.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "could not ssz marshal")
	}
	return snappy.Encode(nil, enc), nil
}

// decode reverses encode into dst, which must be a pointer to the container
// type the data was written as.
func decode(data []byte, dst interface{}) error {
	data, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "could not snappy decode")
	}
	if err := ssz.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "could not ssz unmarshal")
	}
	return nil
}
