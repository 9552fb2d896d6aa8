package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsAreDistinguishableWhenWrapped(t *testing.T) {
	wrapped := fmt.Errorf("tx abc123: %w", ErrInvalidNewTransaction)
	if !errors.Is(wrapped, ErrInvalidNewTransaction) {
		t.Error("wrapped ErrInvalidNewTransaction should still match errors.Is")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Error("ErrInvalidNewTransaction should not match ErrValidation")
	}
}

func TestTokenBalancesLookup(t *testing.T) {
	balances := TokenBalances{
		"00": {Available: 100, Locked: 10},
	}
	b, ok := balances["00"]
	if !ok {
		t.Fatal("expected native token entry")
	}
	if b.Available != 100 || b.Locked != 10 {
		t.Errorf("balance = %+v, want {100 10}", b)
	}
	if _, ok := balances["nonexistent"]; ok {
		t.Error("unexpected entry for unconfigured token")
	}
}
