// Package circuits defines the zero-knowledge circuits whose proofs the
// pool's external verifiers authorize.
//
// The pool itself never executes these: proofs are generated and verified
// off-chain (see internal/transactions and internal/verifier), and the pool
// only checks the verifier's countersignature. The circuits are kept here so
// provers, verifiers, and the pool agree on one public-input layout.
//
// Note and nullifier structure (all hashes are MiMC over the curve field):
//
//	leaf value  = H(amount, k, r, pubX, pubY)
//	commitment  = H(leaf value)        (this is the tree leaf)
//	nullifier   = H(amount, k)
package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// TreeDepth is the production Merkle tree depth the withdrawal circuit is
// compiled for. A proof path has one extra slot for the leaf value.
const TreeDepth = 32

// assertCommitment constrains commitment == H(H(values...)).
func assertCommitment(api frontend.API, h *mimc.MiMC, commitment frontend.Variable, values ...frontend.Variable) {
	for _, v := range values {
		h.Write(v)
	}
	inner := h.Sum()
	h.Reset()
	h.Write(inner)
	api.AssertIsEqual(commitment, h.Sum())
	h.Reset()
}
