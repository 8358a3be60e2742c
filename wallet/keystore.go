// Package wallet provides key management and operation signing helpers.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/baileyhollabaugh/tokenvibes/crypto"
)

// Keystore file format: a versioned envelope holding the AES-GCM
// encrypted ed25519 private key. The KDF parameters are recorded in the
// file so they can be raised for new keys without breaking old ones.
const (
	keystoreVersion = 1
	kdfName         = "pbkdf2-sha256"
	kdfIterations   = 600_000
)

type keystoreKDF struct {
	Name       string `json:"name"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
}

type keystoreFile struct {
	Version    int         `json:"version"`
	Address    string      `json:"address"` // pubkey hex, for display only
	KDF        keystoreKDF `json:"kdf"`
	Nonce      string      `json:"nonce"`
	CipherText string      `json:"cipher_text"`
}

// SaveKey encrypts priv with password and writes it to path.
func SaveKey(path, password string, priv crypto.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt, kdfIterations)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, priv, nil)

	ks := keystoreFile{
		Version: keystoreVersion,
		Address: priv.Public().Hex(),
		KDF: keystoreKDF{
			Name:       kdfName,
			Iterations: kdfIterations,
			Salt:       hex.EncodeToString(salt),
		},
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKey decrypts the keystore at path using password. The stored KDF
// parameters are used, so files written with other iteration counts
// stay loadable.
func LoadKey(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, err
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", ks.Version)
	}
	if ks.KDF.Name != kdfName {
		return nil, fmt.Errorf("unsupported keystore kdf %q", ks.KDF.Name)
	}
	if ks.KDF.Iterations <= 0 {
		return nil, fmt.Errorf("invalid keystore kdf iterations %d", ks.KDF.Iterations)
	}
	salt, err := hex.DecodeString(ks.KDF.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, err
	}

	key := deriveKey(password, salt, ks.KDF.Iterations)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.New("wrong password or corrupted keystore")
	}
	return crypto.PrivateKey(privBytes), nil
}

func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
}
