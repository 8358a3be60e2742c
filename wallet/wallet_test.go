package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/baileyhollabaugh/tokenvibes/core"
)

func TestNewOpSigns(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	op, err := w.Transfer("chain", 0, "tok", "bob", 5)
	if err != nil {
		t.Fatal(err)
	}
	if op.From != w.PubKey() {
		t.Errorf("From = %s, want %s", op.From, w.PubKey())
	}
	if op.Type != core.OpTransfer {
		t.Errorf("Type = %s", op.Type)
	}
	if err := op.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestBuildersSetOpType(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		typ   core.OpType
		build func() (*core.Operation, error)
	}{
		{core.OpCreateToken, func() (*core.Operation, error) {
			return w.CreateToken("c", 0, "Name", "SYM", 0, 100, "")
		}},
		{core.OpMintToken, func() (*core.Operation, error) {
			return w.MintToken("c", 0, "tok", "", 10)
		}},
		{core.OpOpenSale, func() (*core.Operation, error) {
			return w.OpenSale("c", 0, "a", "b", 1, 2)
		}},
		{core.OpPurchase, func() (*core.Operation, error) {
			return w.Purchase("c", 0, "sale", 1)
		}},
		{core.OpWithdrawProceeds, func() (*core.Operation, error) {
			return w.WithdrawProceeds("c", 0, "sale")
		}},
		{core.OpCancelSale, func() (*core.Operation, error) {
			return w.CancelSale("c", 0, "sale")
		}},
	}
	for _, tc := range cases {
		op, err := tc.build()
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if op.Type != tc.typ {
			t.Errorf("got type %s, want %s", op.Type, tc.typ)
		}
		if err := op.Verify(); err != nil {
			t.Errorf("%s: Verify: %v", tc.typ, err)
		}
	}
}

func TestKeystoreRoundtrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")

	if err := SaveKey(path, "hunter2", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	priv, err := LoadKey(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if New(priv).PubKey() != w.PubKey() {
		t.Error("loaded key does not match saved key")
	}
}

func TestKeystoreWrongPassword(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := SaveKey(path, "right", w.PrivKey()); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKey(path, "wrong"); err == nil {
		t.Error("wrong password should fail to decrypt")
	}
}

func TestLoadKeyMissingFile(t *testing.T) {
	if _, err := LoadKey(filepath.Join(t.TempDir(), "nope.json"), "pw"); err == nil {
		t.Error("missing keystore should fail")
	}
}

func TestKeystoreEnvelope(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := SaveKey(path, "pw", w.PrivKey()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		t.Fatal(err)
	}
	if ks.Version != keystoreVersion {
		t.Errorf("version = %d, want %d", ks.Version, keystoreVersion)
	}
	if ks.Address != w.PubKey() {
		t.Errorf("address = %s, want %s", ks.Address, w.PubKey())
	}
	if ks.KDF.Name != kdfName || ks.KDF.Iterations != kdfIterations {
		t.Errorf("kdf = %s/%d, want %s/%d", ks.KDF.Name, ks.KDF.Iterations, kdfName, kdfIterations)
	}

	// A file from a future format version must be rejected, not
	// misdecrypted.
	ks.Version = keystoreVersion + 1
	data, err = json.Marshal(ks)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKey(path, "pw"); err == nil {
		t.Error("unknown keystore version should fail to load")
	}
}

func TestLoadKeyHonorsStoredIterations(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := SaveKey(path, "pw", w.PrivKey()); err != nil {
		t.Fatal(err)
	}

	// Rewrite the file as if it were saved with a lower iteration
	// count. LoadKey must derive with the stored count, not the
	// current default.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		t.Fatal(err)
	}
	salt, err := hex.DecodeString(ks.KDF.Salt)
	if err != nil {
		t.Fatal(err)
	}
	oldIterations := 10_000
	key := deriveKey("pw", salt, oldIterations)
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		t.Fatal(err)
	}
	ks.KDF.Iterations = oldIterations
	ks.CipherText = hex.EncodeToString(gcm.Seal(nil, nonce, w.PrivKey(), nil))
	data, err = json.Marshal(ks)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	priv, err := LoadKey(path, "pw")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if New(priv).PubKey() != w.PubKey() {
		t.Error("loaded key does not match saved key")
	}
}
