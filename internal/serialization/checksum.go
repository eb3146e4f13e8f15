package serialization

import (
	"crypto/sha256"
	"fmt"
)

// computeChecksum hashes the data section.
func computeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// validateChecksum compares the stored checksum against the data section.
func validateChecksum(data []byte, want [ChecksumSize]byte) error {
	got := computeChecksum(data)
	if got != want {
		return fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, want, got)
	}
	return nil
}
