package core

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedAdd(t *testing.T) {
	if got, err := CheckedAdd(2, 3); err != nil || got != 5 {
		t.Errorf("CheckedAdd(2,3) = %d, %v", got, err)
	}
	if got, err := CheckedAdd(math.MaxUint64, 0); err != nil || got != math.MaxUint64 {
		t.Errorf("CheckedAdd(max,0) = %d, %v", got, err)
	}
	if _, err := CheckedAdd(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("CheckedAdd(max,1) err = %v, want ErrOverflow", err)
	}
}

func TestCheckedSub(t *testing.T) {
	if got, err := CheckedSub(5, 3); err != nil || got != 2 {
		t.Errorf("CheckedSub(5,3) = %d, %v", got, err)
	}
	if got, err := CheckedSub(5, 5); err != nil || got != 0 {
		t.Errorf("CheckedSub(5,5) = %d, %v", got, err)
	}
	if _, err := CheckedSub(3, 5); !errors.Is(err, ErrOverflow) {
		t.Errorf("CheckedSub(3,5) err = %v, want ErrOverflow", err)
	}
}

func TestCheckedMul(t *testing.T) {
	if got, err := CheckedMul(30, 10); err != nil || got != 300 {
		t.Errorf("CheckedMul(30,10) = %d, %v", got, err)
	}
	if got, err := CheckedMul(0, math.MaxUint64); err != nil || got != 0 {
		t.Errorf("CheckedMul(0,max) = %d, %v", got, err)
	}
	if got, err := CheckedMul(math.MaxUint64, 1); err != nil || got != math.MaxUint64 {
		t.Errorf("CheckedMul(max,1) = %d, %v", got, err)
	}
	if _, err := CheckedMul(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("CheckedMul(max,2) err = %v, want ErrOverflow", err)
	}
	if _, err := CheckedMul(1<<32, 1<<32); !errors.Is(err, ErrOverflow) {
		t.Errorf("CheckedMul(2^32,2^32) err = %v, want ErrOverflow", err)
	}
}
