package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fieldSeparator cannot appear in any identifier or number we hash.
const fieldSeparator = "\x1f"

// Sha256Hex returns the SHA-256 digest of the input encoded as lowercase hex.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashFields digests an ordered list of fields. Field boundaries are part of
// the digest, so ("ab", "c") and ("a", "bc") differ.
func HashFields(fields ...string) string {
	return Sha256Hex(strings.Join(fields, fieldSeparator))
}
