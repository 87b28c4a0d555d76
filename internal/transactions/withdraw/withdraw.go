// Package withdraw builds withdrawal proofs for the pool.
//
// A withdrawal spends a note in the tree: it reveals the note's nullifier,
// proves membership against a recent root, binds the recipient identity
// into the proof, and commits to a change note for the remainder.
package withdraw

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark-crypto/ecc/twistededwards"
	gchash "github.com/consensys/gnark-crypto/hash"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	sigEddsa "github.com/consensys/gnark/std/signature/eddsa"

	"mixerpool/internal/circuits"
	"mixerpool/internal/mixer"
	"mixerpool/internal/transactions/notes"
)

// Request describes one withdrawal to prove.
type Request struct {
	Spend    *notes.Note       // note being spent, already in the tree
	SpendKey *eddsa.PrivateKey // key owning the spent note

	Change *notes.Note // change note, amount = spend - withdrawal - fee

	Recipient  mixer.Address
	Withdrawal uint64
	Fee        uint64

	// Membership of the spent note: its leaf index, a proof from the
	// wallet tree (leaf value first), and the root it was built against.
	Index uint64
	Path  [][]byte
	Root  []byte
}

// Compile compiles the withdrawal circuit for the deployment curve.
func Compile(cfg *mixer.Config) (constraint.ConstraintSystem, error) {
	var circuit circuits.WithdrawalCircuit
	ccs, err := frontend.Compile(cfg.Curve.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile withdrawal circuit: %w", err)
	}
	return ccs, nil
}

// Assignment builds the full witness assignment, signing the change
// commitment with the spent note's key.
func Assignment(cfg *mixer.Config, req *Request) (*circuits.WithdrawalCircuit, error) {
	if err := req.validate(cfg); err != nil {
		return nil, err
	}

	commitment := req.Change.Commitment(cfg)
	sig, err := req.SpendKey.Sign(commitment, gchash.MIMC_BN254.New())
	if err != nil {
		return nil, fmt.Errorf("sign change commitment: %w", err)
	}
	circuitSig := sigEddsa.Signature{}
	circuitSig.Assign(twistededwards.BN254, sig)

	var path [circuits.TreeDepth + 1]frontend.Variable
	for i, node := range req.Path {
		path[i] = node
	}

	return &circuits.WithdrawalCircuit{
		Recipient:  mixer.RecipientMod(req.Recipient, cfg.CurveOrder),
		Withdrawal: req.Withdrawal,
		Fee:        req.Fee,
		Nullifier:  req.Spend.Nullifier(cfg),
		Root:       req.Root,
		Commitment: commitment,

		Amount: req.Spend.Amount,
		K:      req.Spend.K,
		R:      req.Spend.R,
		InputX: req.Spend.PubX,
		InputY: req.Spend.PubY,

		Change:  req.Change.Amount,
		ChangeK: req.Change.K,
		ChangeR: req.Change.R,
		OutputX: req.Change.PubX,
		OutputY: req.Change.PubY,

		Signature: circuitSig,

		Index: req.Index,
		Path:  path,
	}, nil
}

// PublicInputs returns the ordered public inputs the pool reads:
// [recipient_mod, withdrawal, fee, nullifier, root, commitment].
func PublicInputs(cfg *mixer.Config, req *Request) [][]byte {
	return [][]byte{
		mixer.RecipientMod(req.Recipient, cfg.CurveOrder),
		mixer.Uint64ToBytes32(req.Withdrawal),
		mixer.Uint64ToBytes32(req.Fee),
		req.Spend.Nullifier(cfg),
		req.Root,
		req.Change.Commitment(cfg),
	}
}

// Prove generates the Groth16 proof for the withdrawal, returning the
// serialized proof and the ordered public inputs.
func Prove(cfg *mixer.Config, req *Request, ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey) ([]byte, [][]byte, error) {

	assignment, err := Assignment(cfg, req)
	if err != nil {
		return nil, nil, err
	}
	witness, err := frontend.NewWitness(assignment, cfg.Curve.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("build withdrawal witness: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, nil, fmt.Errorf("prove withdrawal: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("marshal withdrawal proof: %w", err)
	}
	return buf.Bytes(), PublicInputs(cfg, req), nil
}

func (req *Request) validate(cfg *mixer.Config) error {
	if req.Spend == nil || req.Change == nil || req.SpendKey == nil {
		return fmt.Errorf("withdrawal request is missing a note or key")
	}
	// Compared without addition so huge values cannot wrap around.
	if req.Withdrawal > req.Spend.Amount ||
		req.Fee > req.Spend.Amount-req.Withdrawal ||
		req.Change.Amount != req.Spend.Amount-req.Withdrawal-req.Fee {
		return fmt.Errorf("change %d does not balance: spend %d, withdrawal %d, fee %d",
			req.Change.Amount, req.Spend.Amount, req.Withdrawal, req.Fee)
	}
	if cfg.Depth != circuits.TreeDepth {
		return fmt.Errorf("withdrawal circuit is compiled for depth %d, deployment uses %d",
			circuits.TreeDepth, cfg.Depth)
	}
	if len(req.Path) != cfg.Depth+1 {
		return fmt.Errorf("path must have %d nodes, got %d", cfg.Depth+1, len(req.Path))
	}
	return nil
}
