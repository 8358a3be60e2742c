package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 of data. Operation IDs and
// state roots are Hash values, so equality on them is string equality.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 digest. Address derivation hashes
// over these bytes rather than their hex form.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
