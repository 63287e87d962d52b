// Package zkp runs the Groth16 age-threshold circuit: it loads or builds
// the circuit setup, proves claims and verifies embedded proofs.
package zkp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	ct "github.com/mynextid/zkcert/circuits/temporal"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/common"
	"golang.org/x/sync/semaphore"
)

const (
	CircuitName    = "age-threshold"
	CircuitVersion = 1
)

// number of public inputs: threshold, day, month, year
const publicSignalCount = 4

var ErrProofInvalid = errors.New("proof verification failed")

// Proof is a serialized Groth16 proof and its public inputs in circuit
// declaration order, as decimal strings.
type Proof struct {
	Data          []byte
	PublicSignals []string
}

// Engine holds a loaded constraint system with its proving and verifying
// keys. It is safe for concurrent use.
type Engine struct {
	cs  constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	sem *semaphore.Weighted
}

type Option func(*Engine)

// WithMaxProvers bounds the number of proofs computed concurrently.
func WithMaxProvers(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

func newEngine(cs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, opts []Option) *Engine {
	e := &Engine{
		cs:  cs,
		pk:  pk,
		vk:  vk,
		sem: semaphore.NewWeighted(int64(runtime.NumCPU())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ArtifactPaths returns the constraint system, proving key and verifying
// key paths of the circuit inside dir.
func ArtifactPaths(dir string) (ccsPath, pkPath, vkPath string) {
	base := filepath.Join(dir, fmt.Sprintf("%s-%d", CircuitName, CircuitVersion))
	return base + ".ccs", base + ".pk", base + ".vk"
}

// Compile builds a fresh in-memory setup. Each call produces new keys, so
// proofs only verify against the engine that produced them or one loaded
// from its saved artifacts.
func Compile(opts ...Option) (*Engine, error) {
	cs, pk, vk, err := common.Setup(&ct.AgeThreshold{})
	if err != nil {
		return nil, &ProofGenerationError{Reason: "circuit setup failed", Err: err}
	}
	return newEngine(cs, pk, vk, opts), nil
}

// Load reads the circuit artifacts written by Save.
func Load(dir string, opts ...Option) (*Engine, error) {
	ccsPath, pkPath, vkPath := ArtifactPaths(dir)
	cs, pk, vk, err := common.LoadSetup(ccsPath, pkPath, vkPath)
	if err != nil {
		return nil, &ProofGenerationError{Reason: "circuit artifacts unavailable", Err: err}
	}
	return newEngine(cs, pk, vk, opts), nil
}

// Save writes the circuit artifacts into dir.
func (e *Engine) Save(dir string) error {
	ccsPath, pkPath, vkPath := ArtifactPaths(dir)
	return common.SaveSetup(e.cs, e.pk, e.vk, ccsPath, pkPath, vkPath)
}

// VerifyingKeyHash returns the hex SHA-256 of the serialized verifying key.
// Verifiers compare it to pin the setup a deployment proves against.
func (e *Engine) VerifyingKeyHash() (string, error) {
	h := sha256.New()
	if _, err := e.vk.WriteTo(h); err != nil {
		return "", fmt.Errorf("failed to serialize verifying key: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GenerateProof proves the inputs on a worker goroutine. When ctx ends
// first the proof is abandoned and ctx.Err() returned; the worker still
// holds its semaphore slot until the prover returns.
func (e *Engine) GenerateProof(ctx context.Context, in CircuitInputs) (*Proof, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	type result struct {
		proof *Proof
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer e.sem.Release(1)
		p, err := e.prove(in)
		done <- result{proof: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.proof, r.err
	}
}

func (e *Engine) prove(in CircuitInputs) (*Proof, error) {
	witness, err := frontend.NewWitness(in.assignment(), ecc.BN254.ScalarField())
	if err != nil {
		return nil, &ProofGenerationError{Reason: "witness creation failed"}
	}

	// the solver error quotes witness values, so it is dropped here
	proof, err := groth16.Prove(e.cs, e.pk, witness)
	if err != nil {
		return nil, &ProofGenerationError{Reason: "constraint system not satisfied"}
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, &ProofGenerationError{Reason: "proof serialization failed", Err: err}
	}

	publicWitness, err := witness.Public()
	if err != nil {
		return nil, &ProofGenerationError{Reason: "public witness extraction failed"}
	}
	vec, ok := publicWitness.Vector().(fr.Vector)
	if !ok {
		return nil, &ProofGenerationError{Reason: "unexpected public witness type"}
	}

	signals := make([]string, len(vec))
	for i := range vec {
		signals[i] = vec[i].String()
	}

	return &Proof{Data: buf.Bytes(), PublicSignals: signals}, nil
}

// VerifyProof checks the proof against its own public signals.
func (e *Engine) VerifyProof(p *Proof) error {
	if p == nil || len(p.Data) == 0 {
		return fmt.Errorf("%w: empty proof", ErrProofInvalid)
	}
	if len(p.PublicSignals) != publicSignalCount {
		return fmt.Errorf("%w: expected %d public signals, got %d", ErrProofInvalid, publicSignalCount, len(p.PublicSignals))
	}

	values := make([]int, publicSignalCount)
	for i, s := range p.PublicSignals {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: malformed public signal %d", ErrProofInvalid, i)
		}
		values[i] = v
	}

	assignment := &ct.AgeThreshold{
		DobDay:       0,
		DobMonth:     0,
		DobYear:      0,
		AgeThreshold: values[0],
		CurrentDay:   values[1],
		CurrentMonth: values[2],
		CurrentYear:  values[3],
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: public witness: %v", ErrProofInvalid, err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(p.Data)); err != nil {
		return fmt.Errorf("%w: failed to parse the proof: %v", ErrProofInvalid, err)
	}

	if err := groth16.Verify(proof, e.vk, publicWitness); err != nil {
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	return nil
}

// VerifyClaim checks that the proof attests "age >= threshold on
// referenceDate" and that it verifies.
func (e *Engine) VerifyClaim(p *Proof, threshold int, referenceDate time.Time) error {
	if p == nil {
		return fmt.Errorf("%w: empty proof", ErrProofInvalid)
	}
	want := PublicSignals(threshold, referenceDate)
	if len(p.PublicSignals) != len(want) {
		return fmt.Errorf("%w: public signals do not match the claim", ErrProofInvalid)
	}
	for i := range want {
		if p.PublicSignals[i] != want[i] {
			return fmt.Errorf("%w: public signals do not match the claim", ErrProofInvalid)
		}
	}
	return e.VerifyProof(p)
}

// PublicSignals returns the public inputs a proof of "age >= threshold on
// referenceDate" carries.
func PublicSignals(threshold int, referenceDate time.Time) []string {
	d, m, y := claims.CircuitDate(referenceDate)
	return []string{
		strconv.Itoa(threshold),
		strconv.Itoa(d),
		strconv.Itoa(m),
		strconv.Itoa(y),
	}
}
