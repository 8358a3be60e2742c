package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// Sign signs the canonical operation bytes with priv and returns the
// signature hex-encoded, which is how it travels inside an Operation.
func Sign(priv PrivateKey, data []byte) string {
	sig := ed25519.Sign(ed25519.PrivateKey(priv), data)
	return hex.EncodeToString(sig)
}

// Verify checks a hex-encoded signature over data against pub. The
// ledger calls this with the submitter's address decoded as the public
// key, so a valid signature also proves control of the From account.
func Verify(pub PublicKey, data []byte, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}
