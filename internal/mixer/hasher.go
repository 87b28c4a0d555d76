// hasher.go - Two-to-one MiMC compression over 32-byte values.
//
// The hash family is fixed per deployment curve. Inputs are left-padded to
// one 32-byte field block each before hashing.

package mixer

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/hash"

	// Register the MiMC implementations behind hash.MIMC_*.
	_ "github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
	_ "github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"
	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// NewMimcF returns the native MiMC hash function for the given curve.
// Only curves with a 32-byte scalar field are supported, since every value
// in the pool (leaves, roots, nullifiers) is a 32-byte field element.
func NewMimcF(curve ecc.ID) (HashFunc, error) {
	var h hash.Hash
	switch curve {
	case ecc.BN254:
		h = hash.MIMC_BN254
	case ecc.BLS12_377:
		h = hash.MIMC_BLS12_377
	case ecc.BLS12_381:
		h = hash.MIMC_BLS12_381
	default:
		return nil, fmt.Errorf("no MiMC hash for curve %s", curve)
	}
	return func(data ...[]byte) []byte {
		hasher := h.New()
		for _, d := range data {
			// An out-of-field block would otherwise be dropped from
			// the hash, so abort the call like the host VM does.
			if _, err := hasher.Write(pad32(d)); err != nil {
				panic(fmt.Sprintf("mimc: input block not in field: %v", err))
			}
		}
		return hasher.Sum(nil)
	}, nil
}

// pad32 left-pads b to 32 bytes. Inputs longer than 32 bytes keep only the
// low 32 bytes, matching the field-element view of the data.
func pad32(b []byte) []byte {
	if len(b) == 32 {
		return b
	}
	if len(b) > 32 {
		return b[len(b)-32:]
	}
	block := make([]byte, 32)
	copy(block[32-len(b):], b)
	return block
}
