package core

import "testing"

func TestAccountBalance(t *testing.T) {
	acc := &Account{Address: "a"}
	if acc.Balance("tok") != 0 {
		t.Error("nil balances map should read as zero")
	}
	acc.SetBalance("tok", 10)
	if acc.Balance("tok") != 10 {
		t.Errorf("balance = %d, want 10", acc.Balance("tok"))
	}
	acc.SetBalance("tok", 0)
	if acc.Balance("tok") != 0 {
		t.Error("balance should be overwritable to zero")
	}
}

func TestAccountAuthority(t *testing.T) {
	acc := &Account{Address: "a"}
	if acc.Authority() != "a" {
		t.Errorf("self-owned account authority = %q, want own address", acc.Authority())
	}
	acc.Owner = "controller"
	if acc.Authority() != "controller" {
		t.Errorf("owned account authority = %q, want owner", acc.Authority())
	}
}
