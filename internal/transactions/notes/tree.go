// tree.go - Wallet-side view of the pool's Merkle tree.
//
// The pool only keeps the right frontier, which cannot answer inclusion
// queries. Provers therefore track every commitment themselves and build
// Merkle proofs locally; the pool merely checks the proved root against its
// history window.

package notes

import (
	"bytes"
	"errors"
	"fmt"

	"mixerpool/internal/mixer"
)

// WalletTree mirrors the pool tree with full leaf knowledge. It keeps the
// same frontier as the pool engine plus the list of all inserted leaves, so
// it can produce inclusion proofs for any of them.
type WalletTree struct {
	cfg      *mixer.Config
	frontier [][]byte // depth+1 entries, entry depth is the current root
	leaves   [][]byte // commitments in insertion order
}

// NewWalletTree returns an empty wallet tree for the deployment.
func NewWalletTree(cfg *mixer.Config) *WalletTree {
	frontier := make([][]byte, cfg.Depth+1)
	copy(frontier, cfg.ZeroHashes)
	return &WalletTree{cfg: cfg, frontier: frontier}
}

// AddLeaf appends a commitment and returns its leaf index. The fold mirrors
// the pool engine exactly, so Root always matches the pool's current root.
func (t *WalletTree) AddLeaf(commitment []byte) int {
	t.leaves = append(t.leaves, commitment)
	current := commitment
	index := len(t.leaves) - 1
	for i := 0; i < t.cfg.Depth; i++ {
		var left, right []byte
		if index&1 == 0 {
			t.frontier[i] = current
			left, right = current, t.cfg.ZeroHashes[i]
		} else {
			left, right = t.frontier[i], current
		}
		current = t.cfg.Hash(left, right)
		index >>= 1
	}
	t.frontier[t.cfg.Depth] = current
	return len(t.leaves) - 1
}

// Root returns the current root.
func (t *WalletTree) Root() []byte {
	return t.frontier[t.cfg.Depth]
}

// Size returns the number of inserted leaves.
func (t *WalletTree) Size() int {
	return len(t.leaves)
}

// Proof returns the inclusion proof for the leaf at index. The proof starts
// with the leaf value (the commitment preimage, not the commitment) and
// continues with the sibling at each level up to but excluding the root.
// It fails if leafValue does not hash to the commitment at index.
func (t *WalletTree) Proof(leafValue []byte, index int) ([][]byte, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, errors.New("leaf index out of range")
	}
	if !bytes.Equal(t.leaves[index], t.cfg.Hash(leafValue)) {
		return nil, fmt.Errorf("leaf value does not open the commitment at index %d", index)
	}

	proof := make([][]byte, 1, t.cfg.Depth+1)
	proof[0] = leafValue

	// At each level append the sibling: the right neighbor when we sit on
	// an even index, the left neighbor otherwise. Open positions on the
	// right are zero subtrees.
	level := make([][]byte, len(t.leaves))
	copy(level, t.leaves)
	if len(level)%2 == 1 {
		level = append(level, t.cfg.ZeroHashes[0])
	}
	for i := 0; i < t.cfg.Depth; i++ {
		if index&1 == 0 {
			proof = append(proof, level[index+1])
		} else {
			proof = append(proof, level[index-1])
		}

		next := make([][]byte, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			next = append(next, t.cfg.Hash(level[j], level[j+1]))
		}
		if len(next)%2 == 1 && i+1 < t.cfg.Depth {
			next = append(next, t.cfg.ZeroHashes[i+1])
		}
		level = next
		index >>= 1
	}
	return proof, nil
}

// VerifyProof checks a proof produced by Proof against a root.
func (t *WalletTree) VerifyProof(index int, proof [][]byte, root []byte) bool {
	if len(proof) != t.cfg.Depth+1 {
		return false
	}
	current := t.cfg.Hash(proof[0])
	for i := 1; i < len(proof); i++ {
		if index&1 == 0 {
			current = t.cfg.Hash(current, proof[i])
		} else {
			current = t.cfg.Hash(proof[i], current)
		}
		index >>= 1
	}
	return bytes.Equal(current, root)
}
