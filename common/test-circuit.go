package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

// InitCircuit loads the setup files, compiling the circuit first when any
// of them is missing or forceCompile is set.
func InitCircuit(ccsPath, pkPath, vkPath string, forceCompile bool, circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	// Validate paths to prevent directory traversal attacks
	if err := validatePath(ccsPath); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid ccsPath: %w", err)
	}
	if err := validatePath(pkPath); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid pkPath: %w", err)
	}
	if err := validatePath(vkPath); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid vkPath: %w", err)
	}

	// Create all necessary subdirectories
	if err := ensureDirectories(ccsPath, pkPath, vkPath); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if forceCompile {
		for _, p := range []string{ccsPath, pkPath, vkPath} {
			if err := safeRemove(p); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}

	if !(fileExists(ccsPath) && fileExists(pkPath) && fileExists(vkPath)) {
		if err := SetupAndSave(circuitTemplate, ccsPath, pkPath, vkPath); err != nil {
			return nil, nil, nil, fmt.Errorf("setup and save failed: %w", err)
		}
	}

	return LoadSetup(ccsPath, pkPath, vkPath)
}

// Timings of a full prove/verify round
type Timings struct {
	Witness time.Duration
	Proof   time.Duration
	Public  time.Duration
	Verify  time.Duration
}

func (t Timings) Total() time.Duration {
	return t.Witness + t.Proof + t.Public + t.Verify
}

// TestCircuit executes witness and proof creation, and verification. The function times the real function time of execution
func TestCircuit(assignment frontend.Circuit, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (Timings, error) {
	var t Timings

	start := time.Now()
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return t, fmt.Errorf("witness creation failed: %w", err)
	}
	t.Witness = time.Since(start)

	start = time.Now()
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return t, fmt.Errorf("proof creation failed: %w", err)
	}
	t.Proof = time.Since(start)

	start = time.Now()
	publicWitness, err := witness.Public()
	if err != nil {
		return t, fmt.Errorf("public witness extraction failed: %w", err)
	}
	t.Public = time.Since(start)

	start = time.Now()
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return t, fmt.Errorf("verification failed: %w", err)
	}
	t.Verify = time.Since(start)

	return t, nil
}

func validatePath(p string) error {
	if p == "" {
		return errors.New("empty path")
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("path %q escapes its directory", p)
		}
	}
	return nil
}

func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
	}
	return nil
}

func safeRemove(p string) error {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
