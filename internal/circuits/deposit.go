// deposit.go - Circuit proving a well-formed deposit commitment.

package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// DepositCircuit proves the depositor knows an opening of Commitment to the
// deposited Amount. Public input order matches the pool's deposit protocol:
// [amount, commitment].
type DepositCircuit struct {
	Amount     frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	// Note opening. PubX and PubY are the withdrawal public key, used only
	// to sign withdrawal commitments later.
	K    frontend.Variable
	R    frontend.Variable
	PubX frontend.Variable
	PubY frontend.Variable
}

func (c *DepositCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	// Commitment == H(H(Amount, K, R, PubX, PubY))
	assertCommitment(api, &h, c.Commitment, c.Amount, c.K, c.R, c.PubX, c.PubY)
	return nil
}
