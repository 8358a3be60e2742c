package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DeriveAddress returns a deterministic capability address from a tag
// and its identifying parts. The same inputs always yield the same
// address, so any holder of the identifying fields can reconstruct the
// authority without storing a secret: a sale ledger derives its own ID
// from (seller, sale token) and the addresses of the two custody
// accounts it controls from that ID.
//
// No private key exists for a derived address; the ledger acts as
// signer over accounts owned by one.
//
// Each part is length-prefixed before hashing so distinct part lists
// can never collide by concatenation.
func DeriveAddress(tag string, parts ...string) string {
	h := sha256.New()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(tag)))
	h.Write(lenBuf[:])
	h.Write([]byte(tag))
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
