package verifier

import (
	"testing"

	"mixerpool/internal/mixer"
)

func TestNewRejectsUnknownMethod(t *testing.T) {
	cfg := mixer.DefaultConfig()
	var identity mixer.Address
	identity[0] = 1

	if _, err := New(identity, "transfer", cfg, nil); err == nil {
		t.Fatal("expected error for unknown method")
	}
	v, err := New(identity, mixer.MethodDeposit, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if v.Identity() != identity {
		t.Error("identity not retained")
	}
}

func TestVerifyRejectsWrongInputCount(t *testing.T) {
	cfg := mixer.DefaultConfig()
	var identity mixer.Address

	// The input count is checked before the proof is even parsed, so no
	// verifying key is needed here.
	dep, err := New(identity, mixer.MethodDeposit, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := dep.VerifyAndForward(nil, [][]byte{make([]byte, 32)}, mixer.AppCall{}); err == nil {
		t.Fatal("expected error for one deposit input")
	}

	wit, err := New(identity, mixer.MethodWithdraw, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	inputs := make([][]byte, 5)
	for i := range inputs {
		inputs[i] = make([]byte, 32)
	}
	if _, err := wit.VerifyAndForward(nil, inputs, mixer.AppCall{}); err == nil {
		t.Fatal("expected error for five withdrawal inputs")
	}
}
