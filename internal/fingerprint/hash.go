// Package fingerprint derives stable, one-way identifiers for prompts so
// that identical prompts can be correlated without storing their text.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of prompt (64 characters).
func Hash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
