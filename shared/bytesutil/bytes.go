// Package bytesutil defines helper methods for converting between byte slices
// and fixed-size byte arrays used as roots and keys throughout the beacon chain.
package bytesutil

import (
	"encoding/binary"
	"encoding/hex"
)

// ToBytes32 is a convenience method for converting a byte slice to a fix
// sized 32 byte array. This method will truncate the input if it is larger
// than 32 bytes.
func ToBytes32(x []byte) [32]byte {
	var y [32]byte
	copy(y[:], x)
	return y
}

// ToBytes96 is a convenience method for converting a byte slice to a fix
// sized 96 byte array.
func ToBytes96(x []byte) [96]byte {
	var y [96]byte
	copy(y[:], x)
	return y
}

// Bytes8 returns integer x to bytes in little-endian format, x.to_bytes(8, 'little').
func Bytes8(x uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, x)
	return bytes
}

// FromBytes8 returns an integer which is decoded from bytes in little-endian format.
func FromBytes8(x []byte) uint64 {
	if len(x) < 8 {
		b := make([]byte, 8)
		copy(b, x)
		x = b
	}
	return binary.LittleEndian.Uint64(x)
}

// Uint64ToBytesBigEndian conversion, useful for lexicographically ordered db keys.
func Uint64ToBytesBigEndian(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}

// BytesToUint64BigEndian conversion. Returns 0 if empty bytes or byte slice with length less than 8.
func BytesToUint64BigEndian(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// SafeCopyBytes returns a safe copy of the input byte slice, preserving nil.
func SafeCopyBytes(cp []byte) []byte {
	if cp == nil {
		return nil
	}
	copied := make([]byte, len(cp))
	copy(copied, cp)
	return copied
}

// Trunc truncates the byte slices to 6 bytes and returns a hex representation,
// useful for logging roots without flooding the output.
func Trunc(x []byte) string {
	str := hex.EncodeToString(x)
	if len(str) > 12 {
		return str[:12]
	}
	return str
}
