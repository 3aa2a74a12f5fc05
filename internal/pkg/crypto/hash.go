// Package crypto provides password hashing and digest helpers for the fertilizer advisor.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrChecksumMismatch indicates content does not match its expected digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// SHA256Hex returns the hex-encoded SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifySHA256 checks data against a hex-encoded SHA-256 digest.
// An empty expected digest skips the check.
func VerifySHA256(data []byte, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return nil
	}

	actual := SHA256Hex(data)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}
