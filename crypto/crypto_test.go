package crypto

import (
	"strings"
	"testing"
)

func TestKeyGenRoundtrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 64 {
		t.Errorf("pubkey hex length: got %d want 64", len(pub.Hex()))
	}
	// Derived public key should match the generated one.
	if priv.Public().Hex() != pub.Hex() {
		t.Error("derived public key does not match")
	}

	// Hex decode roundtrips.
	pub2, err := PubKeyFromHex(pub.Hex())
	if err != nil {
		t.Fatalf("PubKeyFromHex: %v", err)
	}
	if pub2.Hex() != pub.Hex() {
		t.Error("pubkey hex roundtrip mismatch")
	}
	priv2, err := PrivKeyFromHex(priv.Hex())
	if err != nil {
		t.Fatalf("PrivKeyFromHex: %v", err)
	}
	if priv2.Hex() != priv.Hex() {
		t.Error("privkey hex roundtrip mismatch")
	}
}

func TestPubKeyFromHexRejectsBadInput(t *testing.T) {
	if _, err := PubKeyFromHex("not-hex"); err == nil {
		t.Error("non-hex input should fail")
	}
	if _, err := PubKeyFromHex("deadbeef"); err == nil {
		t.Error("wrong-length input should fail")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello tokenvibes")
	sig := Sign(priv, data)
	if err := Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
	if err := Verify(pub, data, "zz"); err == nil {
		t.Error("malformed signature hex should fail")
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("abc"))
	b := Hash([]byte("abc"))
	if a != b {
		t.Error("same input should hash identically")
	}
	if a == Hash([]byte("abd")) {
		t.Error("different input should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash hex length: got %d want 64", len(a))
	}
}

func TestDeriveAddress(t *testing.T) {
	a := DeriveAddress("sale", "seller1", "tokenA")
	if a != DeriveAddress("sale", "seller1", "tokenA") {
		t.Error("derivation should be deterministic")
	}
	if a == DeriveAddress("sale", "seller2", "tokenA") {
		t.Error("different seller should derive a different address")
	}
	if a == DeriveAddress("custody", "seller1", "tokenA") {
		t.Error("different tag should derive a different address")
	}
	if !strings.EqualFold(a, strings.ToLower(a)) {
		t.Error("derived address should be lowercase hex")
	}
	// Length-prefixing: shifting a boundary between parts must change
	// the result.
	if DeriveAddress("t", "ab", "c") == DeriveAddress("t", "a", "bc") {
		t.Error("part boundaries must be unambiguous")
	}
}
