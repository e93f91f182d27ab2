package hash

import "github.com/cespare/xxhash/v2"

// Checksum computes the xxHash64 of the given data.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// NewFingerprint returns an empty accumulator for codec configuration fingerprints.
func NewFingerprint() *xxhash.Digest {
	return xxhash.New()
}
