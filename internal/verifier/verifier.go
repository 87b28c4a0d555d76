// Package verifier models the external proof authorizers.
//
// The pool never verifies proofs. A deployment designates one verifier
// identity per method; the verifier checks the Groth16 proof against the
// public inputs and, if valid, countersigns the application call. The pool
// accepts the call purely on the signer identity, so the countersignature
// is the authorization.
package verifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"

	"mixerpool/internal/circuits"
	"mixerpool/internal/mixer"
)

// Verifier authorizes proofs for one pool method.
type Verifier struct {
	identity mixer.Address
	method   string
	cfg      *mixer.Config
	vk       groth16.VerifyingKey
}

// New returns a verifier for the given method ("deposit" or "withdraw")
// with a fixed deployment identity and verifying key.
func New(identity mixer.Address, method string, cfg *mixer.Config, vk groth16.VerifyingKey) (*Verifier, error) {
	if method != mixer.MethodDeposit && method != mixer.MethodWithdraw {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	return &Verifier{identity: identity, method: method, cfg: cfg, vk: vk}, nil
}

// Identity returns the verifier's on-chain identity.
func (v *Verifier) Identity() mixer.Address {
	return v.identity
}

// VerifyAndForward checks the proof against the public inputs and returns
// the call countersigned with the verifier identity. The returned call
// carries the proof and public inputs; the caller fills in the remaining
// method arguments before submitting the group.
func (v *Verifier) VerifyAndForward(proofBytes []byte, publicInputs [][]byte, call mixer.AppCall) (*mixer.AppCall, error) {
	witness, err := v.publicWitness(publicInputs)
	if err != nil {
		return nil, err
	}
	proof := groth16.NewProof(v.cfg.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return nil, fmt.Errorf("unmarshal proof: %w", err)
	}
	if err := groth16.Verify(proof, v.vk, witness); err != nil {
		return nil, fmt.Errorf("proof verification failed: %w", err)
	}

	call.Method = v.method
	call.Signer = v.identity
	call.Proof = proofBytes
	call.PublicInputs = publicInputs
	return &call, nil
}

// publicWitness rebuilds the public-only witness from the raw 32-byte
// public inputs, in the circuit's declared order.
func (v *Verifier) publicWitness(publicInputs [][]byte) (witness.Witness, error) {
	var assignment frontend.Circuit
	switch v.method {
	case mixer.MethodDeposit:
		if len(publicInputs) != 2 {
			return nil, fmt.Errorf("deposit expects 2 public inputs, got %d", len(publicInputs))
		}
		assignment = &circuits.DepositCircuit{
			Amount:     asElement(publicInputs[0]),
			Commitment: asElement(publicInputs[1]),
		}
	case mixer.MethodWithdraw:
		if len(publicInputs) != 6 {
			return nil, fmt.Errorf("withdraw expects 6 public inputs, got %d", len(publicInputs))
		}
		assignment = &circuits.WithdrawalCircuit{
			Recipient:  asElement(publicInputs[0]),
			Withdrawal: asElement(publicInputs[1]),
			Fee:        asElement(publicInputs[2]),
			Nullifier:  asElement(publicInputs[3]),
			Root:       asElement(publicInputs[4]),
			Commitment: asElement(publicInputs[5]),
		}
	default:
		return nil, fmt.Errorf("unknown method %q", v.method)
	}
	w, err := frontend.NewWitness(assignment, v.cfg.Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("build public witness: %w", err)
	}
	return w, nil
}

func asElement(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
