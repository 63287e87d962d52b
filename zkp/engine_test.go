package zkp_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/zkp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	engineOnce sync.Once
	engine     *zkp.Engine
	engineErr  error
)

func testEngine(t *testing.T) *zkp.Engine {
	t.Helper()
	engineOnce.Do(func() {
		engine, engineErr = zkp.Compile(zkp.WithMaxProvers(2))
	})
	require.NoError(t, engineErr)
	return engine
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := claims.ParseDate(s)
	require.NoError(t, err)
	return d
}

func validInputs(t *testing.T) zkp.CircuitInputs {
	return zkp.InputsFromClaim(claims.AgeClaim{
		DateOfBirth:         mustDate(t, "2000-01-15"),
		ClaimedThresholdAge: 21,
		ReferenceDate:       mustDate(t, "2024-02-01"),
	})
}

func TestEngine_GenerateAndVerify(t *testing.T) {
	e := testEngine(t)

	proof, err := e.GenerateProof(context.Background(), validInputs(t))
	require.NoError(t, err)
	require.NotEmpty(t, proof.Data)

	assert.Equal(t, []string{"21", "1", "2", "2024"}, proof.PublicSignals)
	assert.Equal(t, zkp.PublicSignals(21, mustDate(t, "2024-02-01")), proof.PublicSignals)

	for _, s := range proof.PublicSignals {
		assert.NotEqual(t, "15", s, "date of birth must not be public")
		assert.NotEqual(t, "2000", s, "date of birth must not be public")
	}

	assert.NoError(t, e.VerifyProof(proof))
	assert.NoError(t, e.VerifyClaim(proof, 21, mustDate(t, "2024-02-01")))
}

func TestEngine_VerifyClaim_Mismatch(t *testing.T) {
	e := testEngine(t)

	proof, err := e.GenerateProof(context.Background(), validInputs(t))
	require.NoError(t, err)

	err = e.VerifyClaim(proof, 18, mustDate(t, "2024-02-01"))
	assert.ErrorIs(t, err, zkp.ErrProofInvalid)

	err = e.VerifyClaim(proof, 21, mustDate(t, "2024-01-01"))
	assert.ErrorIs(t, err, zkp.ErrProofInvalid)

	// relabelled public signals do not verify
	forged := &zkp.Proof{Data: proof.Data, PublicSignals: []string{"30", "1", "2", "2024"}}
	assert.ErrorIs(t, e.VerifyProof(forged), zkp.ErrProofInvalid)
}

func TestEngine_VerifyProof_Tampered(t *testing.T) {
	e := testEngine(t)

	proof, err := e.GenerateProof(context.Background(), validInputs(t))
	require.NoError(t, err)

	tampered := append([]byte(nil), proof.Data...)
	tampered[len(tampered)/2] ^= 0x01
	err = e.VerifyProof(&zkp.Proof{Data: tampered, PublicSignals: proof.PublicSignals})
	assert.ErrorIs(t, err, zkp.ErrProofInvalid)

	assert.ErrorIs(t, e.VerifyProof(&zkp.Proof{}), zkp.ErrProofInvalid)
	assert.ErrorIs(t, e.VerifyProof(&zkp.Proof{Data: proof.Data, PublicSignals: []string{"x", "1", "2", "2024"}}), zkp.ErrProofInvalid)
}

func TestEngine_GenerateProof_InvalidInputs(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name   string
		mutate func(in *zkp.CircuitInputs)
	}{
		{"impossible date of birth", func(in *zkp.CircuitInputs) { in.DobDay, in.DobMonth = 30, 2 }},
		{"month out of range", func(in *zkp.CircuitInputs) { in.CurrentMonth = 13 }},
		{"negative threshold", func(in *zkp.CircuitInputs) { in.AgeThreshold = -1 }},
		{"born after reference date", func(in *zkp.CircuitInputs) { in.DobYear = 2030 }},
		{"year out of circuit range", func(in *zkp.CircuitInputs) { in.CurrentYear = 5000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInputs(t)
			tt.mutate(&in)

			_, err := e.GenerateProof(context.Background(), in)
			var pge *zkp.ProofGenerationError
			require.True(t, errors.As(err, &pge), "got %v", err)
			assert.NotContains(t, err.Error(), "2000")
			assert.NotContains(t, err.Error(), "15")
		})
	}
}

func TestEngine_GenerateProof_FalseClaim(t *testing.T) {
	e := testEngine(t)

	in := validInputs(t)
	in.AgeThreshold = 30

	_, err := e.GenerateProof(context.Background(), in)
	var pge *zkp.ProofGenerationError
	require.True(t, errors.As(err, &pge))
	assert.Equal(t, "constraint system not satisfied", pge.Reason)
}

func TestEngine_GenerateProof_Cancelled(t *testing.T) {
	e := testEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.GenerateProof(ctx, validInputs(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_SaveLoad(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()

	require.NoError(t, e.Save(dir))

	loaded, err := zkp.Load(dir)
	require.NoError(t, err)

	proof, err := loaded.GenerateProof(context.Background(), validInputs(t))
	require.NoError(t, err)
	assert.NoError(t, e.VerifyProof(proof), "keys must survive the round trip")

	want, err := e.VerifyingKeyHash()
	require.NoError(t, err)
	got, err := loaded.VerifyingKeyHash()
	require.NoError(t, err)
	assert.Len(t, got, 64)
	assert.Equal(t, want, got)
}

func TestLoad_MissingArtifacts(t *testing.T) {
	_, err := zkp.Load(t.TempDir())
	var pge *zkp.ProofGenerationError
	require.True(t, errors.As(err, &pge))
	assert.Equal(t, "circuit artifacts unavailable", pge.Reason)
}
