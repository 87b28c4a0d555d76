// tree.go - Incremental Merkle tree engine.
//
// The tree is never materialized. The engine keeps only the cached right
// frontier: one 32-byte node per level, where slot i is the left sibling
// needed to complete the path from the next leaf up through level i. Each
// insertion reconstructs the root in depth hash operations.

package mixer

import "fmt"

// Tree folds leaves into the cached frontier and produces a new root on each
// insertion. It is a pure in-memory engine; the Pool persists the frontier
// bytes through the Store.
type Tree struct {
	cfg      *Config
	frontier []byte // 32 * Depth bytes, slot i at [i*32, (i+1)*32)
	leaves   uint64 // inserted leaves count, also the next free index
}

// NewTree returns an empty tree with the frontier seeded from the zero-hash
// table, one entry per level.
func NewTree(cfg *Config) *Tree {
	frontier := make([]byte, 32*cfg.Depth)
	for i := 0; i < cfg.Depth; i++ {
		copy(frontier[i*32:], cfg.ZeroHashes[i])
	}
	return &Tree{cfg: cfg, frontier: frontier}
}

// LoadTree restores a tree from a persisted frontier and leaf count.
func LoadTree(cfg *Config, frontier []byte, leaves uint64) (*Tree, error) {
	if len(frontier) != 32*cfg.Depth {
		return nil, fmt.Errorf("frontier must be %d bytes, got %d", 32*cfg.Depth, len(frontier))
	}
	f := make([]byte, len(frontier))
	copy(f, frontier)
	return &Tree{cfg: cfg, frontier: f, leaves: leaves}, nil
}

// Insert appends a leaf and returns the new root, or ErrTreeFull once the
// leaf count reaches 2^depth.
//
// Walking up from the leaf level, bit i of the leaf index says whether the
// new node at level i is a left child (store it in the frontier, pair it
// with the zero hash on the right) or a right child (pair it with the
// frontier entry written by an earlier insertion on the left). This mirrors
// a binary counter's carry pattern.
func (t *Tree) Insert(leaf []byte) ([]byte, error) {
	if t.leaves >= t.cfg.MaxLeaves() {
		return nil, ErrTreeFull
	}
	if len(leaf) != 32 {
		return nil, fmt.Errorf("leaf must be 32 bytes, got %d", len(leaf))
	}
	current := leaf
	index := t.leaves
	for i := 0; i < t.cfg.Depth; i++ {
		var left, right []byte
		if index&1 == 0 {
			copy(t.frontier[i*32:], current)
			left, right = current, t.cfg.ZeroHashes[i]
		} else {
			left, right = t.frontier[i*32:(i+1)*32], current
		}
		current = t.cfg.Hash(left, right)
		index >>= 1
	}
	t.leaves++
	return current, nil
}

// Full reports whether the tree is at capacity.
func (t *Tree) Full() bool {
	return t.leaves >= t.cfg.MaxLeaves()
}

// Leaves returns the number of inserted leaves, which is also the index the
// next insertion will use.
func (t *Tree) Leaves() uint64 {
	return t.leaves
}

// Frontier returns the raw frontier bytes for persistence.
func (t *Tree) Frontier() []byte {
	return t.frontier
}
