package common

import (
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Setup compiles the circuit over BN254 and runs the Groth16 setup in memory
func Setup(circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuitTemplate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("circuit compilation failed: %w", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("groth16 setup failed: %w", err)
	}
	return ccs, pk, vk, nil
}

// Save compiled circuit and keys
func SetupAndSave(circuitTemplate frontend.Circuit, ccsPath, pkPath, vkPath string) error {
	ccs, pk, vk, err := Setup(circuitTemplate)
	if err != nil {
		return err
	}
	return SaveSetup(ccs, pk, vk, ccsPath, pkPath, vkPath)
}

// SaveSetup writes the constraint system, proving key and verifying key
func SaveSetup(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, ccsPath, pkPath, vkPath string) error {
	if err := writeFile(ccsPath, ccs.WriteTo); err != nil {
		return fmt.Errorf("failed to save constraint system: %w", err)
	}
	if err := writeFile(pkPath, pk.WriteTo); err != nil {
		return fmt.Errorf("failed to save proving key: %w", err)
	}
	if err := writeFile(vkPath, vk.WriteTo); err != nil {
		return fmt.Errorf("failed to save verifying key: %w", err)
	}
	return nil
}

// Load pre-compiled circuit and keys
func LoadSetup(ccsPath, pkPath, vkPath string) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFile(ccsPath, ccs.ReadFrom); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load constraint system: %w", err)
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFile(pkPath, pk.ReadFrom); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load proving key: %w", err)
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFile(vkPath, vk.ReadFrom); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load verifying key: %w", err)
	}

	return ccs, pk, vk, nil
}

func writeFile(path string, write func(w io.Writer) (int64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFile(path string, read func(r io.Reader) (int64, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = read(f)
	return err
}
