// Package deposit builds deposit proofs for the pool.
//
// A deposit proves knowledge of the commitment opening for the deposited
// amount. The proof goes to the deposit verifier, which countersigns the
// app call the pool accepts (see internal/verifier).
package deposit

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"mixerpool/internal/circuits"
	"mixerpool/internal/mixer"
	"mixerpool/internal/transactions/notes"
)

// Compile compiles the deposit circuit for the deployment curve.
func Compile(cfg *mixer.Config) (constraint.ConstraintSystem, error) {
	var circuit circuits.DepositCircuit
	ccs, err := frontend.Compile(cfg.Curve.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile deposit circuit: %w", err)
	}
	return ccs, nil
}

// Assignment builds the full witness assignment for a note.
func Assignment(cfg *mixer.Config, note *notes.Note) *circuits.DepositCircuit {
	return &circuits.DepositCircuit{
		Amount:     note.Amount,
		Commitment: note.Commitment(cfg),
		K:          note.K,
		R:          note.R,
		PubX:       note.PubX,
		PubY:       note.PubY,
	}
}

// PublicInputs returns the ordered public inputs the pool reads:
// [amount, commitment], each as a 32-byte field element.
func PublicInputs(cfg *mixer.Config, note *notes.Note) [][]byte {
	return [][]byte{
		mixer.Uint64ToBytes32(note.Amount),
		note.Commitment(cfg),
	}
}

// Prove generates the Groth16 proof for a note deposit, returning the
// serialized proof and the ordered public inputs.
func Prove(cfg *mixer.Config, note *notes.Note, ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey) ([]byte, [][]byte, error) {

	witness, err := frontend.NewWitness(Assignment(cfg, note), cfg.Curve.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("build deposit witness: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, nil, fmt.Errorf("prove deposit: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("marshal deposit proof: %w", err)
	}
	return buf.Bytes(), PublicInputs(cfg, note), nil
}
