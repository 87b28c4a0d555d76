// config.go - Deployment configuration for a pool instance.
//
// Deployments differ by curve (hash family and scalar field), tree depth,
// fee policy, and how many change commitments a withdrawal re-inserts.
// One parameterized Config replaces per-deployment code paths.

package mixer

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
)

// Production parameters. Tests use smaller trees via NewConfig.
const (
	TreeDepth  = 32
	RootsCount = 50

	DepositMinimumAmount = 1_000_000

	// Storage cost charged per persisted nullifier record; withdrawal fees
	// must cover it so the pool never operates the registry at a loss.
	NullifierMBR = 15_300

	// Compute budget a call group must carry, metered before any state
	// mutation.
	DepositBudget    = 37_100
	WithdrawalBudget = 39_200
)

// HashFunc is a compression function over 32-byte values. Implementations
// must be deterministic and collision resistant over the deployment field.
type HashFunc func(...[]byte) []byte

// Config holds the parameters of one deployed pool plus the values derived
// from them. Use NewConfig (or DefaultConfig) so the derived fields are set.
type Config struct {
	Curve             ecc.ID
	Depth             int
	RootsCount        int
	DepositMinimum    uint64
	NullifierMBR      uint64
	DepositBudget     uint64
	WithdrawalBudget  uint64
	ChangeCommitments int // commitments re-inserted per withdrawal (1 or 2)

	// Derived by NewConfig.
	Hash       HashFunc
	ZeroHashes [][]byte // entry i is the root of an empty subtree of height i
	EmptyRoot  []byte   // root of the tree with every leaf equal to the zero leaf
	CurveOrder *big.Int
}

// DefaultConfig returns the production deployment: BN254 MiMC, depth 32,
// a 50-root history window, and single change commitment withdrawals.
func DefaultConfig() *Config {
	c, err := NewConfig(Config{
		Curve:             ecc.BN254,
		Depth:             TreeDepth,
		RootsCount:        RootsCount,
		DepositMinimum:    DepositMinimumAmount,
		NullifierMBR:      NullifierMBR,
		DepositBudget:     DepositBudget,
		WithdrawalBudget:  WithdrawalBudget,
		ChangeCommitments: 1,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// NewConfig validates c and fills in the derived fields: the hash function,
// the zero-hash table, the empty root, and the curve order.
func NewConfig(c Config) (*Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	hash, err := NewMimcF(c.Curve)
	if err != nil {
		return nil, err
	}
	c.Hash = hash
	c.ZeroHashes = GenerateZeroHashes(c.Depth, hash)
	c.EmptyRoot = c.ZeroHashes[c.Depth]
	c.CurveOrder = c.Curve.ScalarField()
	return &c, nil
}

// Validate checks the deployment parameters.
func (c *Config) Validate() error {
	if c.Depth <= 0 || c.Depth > 32 {
		return fmt.Errorf("tree depth must be in [1, 32], got %d", c.Depth)
	}
	if c.RootsCount <= 0 {
		return fmt.Errorf("roots count must be positive, got %d", c.RootsCount)
	}
	if c.ChangeCommitments != 1 && c.ChangeCommitments != 2 {
		return fmt.Errorf("change commitments must be 1 or 2, got %d", c.ChangeCommitments)
	}
	if c.DepositBudget == 0 || c.WithdrawalBudget == 0 {
		return fmt.Errorf("compute budgets must be positive")
	}
	return nil
}

// MaxLeaves returns the tree capacity, 2^depth.
func (c *Config) MaxLeaves() uint64 {
	return 1 << uint(c.Depth)
}

// GenerateZeroHashes returns depth+1 entries where entry i is the root of an
// empty subtree of height i. Entry 0 is the hash of the zero leaf; these seed
// the tree on initialization and serve as the right sibling whenever the
// current subtree is open at that level.
func GenerateZeroHashes(depth int, hash HashFunc) [][]byte {
	zeroLeaf := make([]byte, 32)
	table := make([][]byte, depth+1)
	table[0] = hash(zeroLeaf)
	for i := 1; i <= depth; i++ {
		table[i] = hash(table[i-1], table[i-1])
	}
	return table
}
