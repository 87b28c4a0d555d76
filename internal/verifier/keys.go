// keys.go - Groth16 key generation and disk caching.

package verifier

import (
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
)

// SetupOrLoadKeys loads the proving and verifying keys from disk, or runs
// the Groth16 setup and caches the result if either file is missing.
func SetupOrLoadKeys(curve ecc.ID, ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(curve, pkPath)
	vk, vkErr := LoadVerifyingKey(curve, vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(pkPath), 0700); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(vkPath), 0700); err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

func LoadProvingKey(curve ecc.ID, path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(curve)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func LoadVerifyingKey(curve ecc.ID, path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(curve)
	_, err = vk.ReadFrom(f)
	return vk, err
}
