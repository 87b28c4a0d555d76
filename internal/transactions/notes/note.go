// note.go - Note type for deposits and change in the pool.
//
// A note is a hidden (amount, secret) pair. Only its commitment is ever
// published: the pool stores commitments as tree leaves and learns nothing
// else until the nullifier is revealed on spend.

package notes

import (
	"crypto/rand"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"

	"mixerpool/internal/mixer"
)

// NonceByteSize is the size of the k and r nonces. 31 bytes keeps them
// strictly below the field modulus.
const NonceByteSize = 31

// Note is one spendable value in the pool, known only to its owner.
type Note struct {
	Amount uint64
	K      []byte // nullifier nonce
	R      []byte // hiding nonce
	PubX   []byte // withdrawal public key coordinates
	PubY   []byte

	// InsertedIndex is the leaf index in the tree, or -1 before insertion.
	InsertedIndex int64
}

// NewNote creates a note owned by the given withdrawal key.
func NewNote(amount uint64, pub eddsa.PublicKey) (*Note, error) {
	k := make([]byte, NonceByteSize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("generate k: %w", err)
	}
	r := make([]byte, NonceByteSize)
	if _, err := rand.Read(r); err != nil {
		return nil, fmt.Errorf("generate r: %w", err)
	}
	x := pub.A.X.Bytes()
	y := pub.A.Y.Bytes()
	return &Note{
		Amount:        amount,
		K:             k,
		R:             r,
		PubX:          x[:],
		PubY:          y[:],
		InsertedIndex: -1,
	}, nil
}

// LeafValue returns H(amount, k, r, pubX, pubY), the preimage the
// withdrawal circuit opens at Path[0].
func (n *Note) LeafValue(cfg *mixer.Config) []byte {
	return cfg.Hash(mixer.Uint64ToBytes32(n.Amount), n.K, n.R, n.PubX, n.PubY)
}

// Commitment returns H(LeafValue), the value stored as the tree leaf.
func (n *Note) Commitment(cfg *mixer.Config) []byte {
	return cfg.Hash(n.LeafValue(cfg))
}

// Nullifier returns H(amount, k), revealed exactly when the note is spent.
func (n *Note) Nullifier(cfg *mixer.Config) []byte {
	return cfg.Hash(mixer.Uint64ToBytes32(n.Amount), n.K)
}
