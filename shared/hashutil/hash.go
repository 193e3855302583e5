// Package hashutil includes all hash-function related helpers for the beacon node.
package hashutil

import (
	"github.com/minio/sha256-simd"
)

// Hash defines a function that returns the sha256 checksum of the data passed in.
func Hash(data []byte) [32]byte {
	var hash [32]byte
	h := sha256.New()
	// The hash interface never returns an error, for that reason
	// we are not handling the error below.
	// #nosec G104
	h.Write(data)
	h.Sum(hash[:0])

	return hash
}
