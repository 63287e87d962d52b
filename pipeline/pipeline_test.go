package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/checker"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/models"
	"github.com/mynextid/zkcert/pipeline"
	"github.com/mynextid/zkcert/store"
	"github.com/mynextid/zkcert/xades"
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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func identity() models.VerifiedIdentity {
	id, err := models.GetDemoPID().Identity("subject-42")
	if err != nil {
		panic(err)
	}
	id.DateOfBirth = date(2000, 1, 15)
	return id
}

type fakeProver struct {
	calls int
	err   error
}

func (f *fakeProver) GenerateProof(ctx context.Context, in zkp.CircuitInputs) (*zkp.Proof, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ref := date(in.CurrentYear, time.Month(in.CurrentMonth), in.CurrentDay)
	return &zkp.Proof{Data: []byte{1, 2, 3}, PublicSignals: zkp.PublicSignals(in.AgeThreshold, ref)}, nil
}

type signerFunc func([]byte) ([]byte, error)

func (f signerFunc) Sign(doc []byte) ([]byte, error) { return f(doc) }

func newPipeline(t *testing.T, prover pipeline.Prover, signer pipeline.DocumentSigner, st store.Store, opts ...checker.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{
		Prover:  prover,
		Signer:  signer,
		Store:   st,
		Checker: checker.New(xades.NewVerifier(), opts...),
		Issuer:  certificate.Issuer{Name: "MyNextID Trust Services", Code: "MNID"},
		Clock:   func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	signer, err := xades.NewTestSigner()
	require.NoError(t, err)
	st := store.NewMemory()

	p := newPipeline(t, e, signer, st, checker.WithProofVerifier(e))

	id := identity()
	assert.Equal(t, 24, claims.AgeAt(date(2024, 2, 1), id.DateOfBirth))

	rec, err := p.Issue(ctx, pipeline.IssueRequest{Identity: id, ThresholdAge: 21})
	require.NoError(t, err)
	assert.Equal(t, "subject-42", rec.SubjectSystemID)
	assert.Equal(t, certificate.TypeAgeVerify, rec.CertificateType)

	ok, err := xades.NewVerifier().Verify(rec.SignedDocument)
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := certificate.Parse(rec.SignedDocument)
	require.NoError(t, err)
	assert.Equal(t, 21, doc.Data.AgeProof.ClaimedAge)
	assert.Equal(t, "2024-02-01T10:00:00Z", doc.IssueDate)
	assert.Equal(t, "2025-02-01T10:00:00Z", doc.ExpiryDate)
	assert.NotContains(t, string(rec.SignedDocument), "2000-01-15")

	key := store.Key{SubjectSystemID: "subject-42", CertificateType: certificate.TypeAgeVerify}
	fetched, err := p.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rec.SignedDocument, fetched.SignedDocument)

	tests := []struct {
		name       string
		constraint checker.Constraint
		accepted   bool
	}{
		{"lower age on issue day", checker.Constraint{RequiredAge: 18, RequiredDate: date(2024, 2, 1)}, true},
		{"lower age later", checker.Constraint{RequiredAge: 18, RequiredDate: date(2024, 6, 1)}, true},
		{"higher age", checker.Constraint{RequiredAge: 30, RequiredDate: date(2024, 6, 1)}, false},
		{"date before issue", checker.Constraint{RequiredAge: 18, RequiredDate: date(2024, 1, 1)}, false},
		{"higher age before issue", checker.Constraint{RequiredAge: 30, RequiredDate: date(2024, 1, 1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Verify(ctx, key, tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, res.Accepted)
			if !tt.accepted {
				assert.Equal(t, checker.ReasonConstraintNotMet, res.Reason)
			}
		})
	}
}

func TestPipeline_ClaimMismatch(t *testing.T) {
	prover := &fakeProver{}
	signer, err := xades.NewTestSigner()
	require.NoError(t, err)
	st := store.NewMemory()
	p := newPipeline(t, prover, signer, st)

	_, err = p.Issue(context.Background(), pipeline.IssueRequest{Identity: identity(), ThresholdAge: 25})
	var mismatch *claims.ClaimMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.NotContains(t, err.Error(), "2000")
	assert.NotContains(t, err.Error(), "24")
	assert.Zero(t, prover.calls)

	_, err = st.Get(context.Background(), store.Key{SubjectSystemID: "subject-42", CertificateType: certificate.TypeAgeVerify})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPipeline_NoPartialWrites(t *testing.T) {
	key := store.Key{SubjectSystemID: "subject-42", CertificateType: certificate.TypeAgeVerify}

	t.Run("proof failure", func(t *testing.T) {
		st := store.NewMemory()
		p := newPipeline(t, &fakeProver{err: &zkp.ProofGenerationError{Reason: "constraint system not satisfied"}},
			signerFunc(func(b []byte) ([]byte, error) { return b, nil }), st)

		_, err := p.Issue(context.Background(), pipeline.IssueRequest{Identity: identity(), ThresholdAge: 18})
		var pge *zkp.ProofGenerationError
		assert.ErrorAs(t, err, &pge)

		_, err = st.Get(context.Background(), key)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("signing failure", func(t *testing.T) {
		st := store.NewMemory()
		p := newPipeline(t, &fakeProver{},
			signerFunc(func([]byte) ([]byte, error) { return nil, errors.New("hsm unavailable") }), st)

		_, err := p.Issue(context.Background(), pipeline.IssueRequest{Identity: identity(), ThresholdAge: 18})
		assert.Error(t, err)

		_, err = st.Get(context.Background(), key)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("cancelled while signing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		signer, err := xades.NewTestSigner()
		require.NoError(t, err)
		st := store.NewMemory()
		p := newPipeline(t, &fakeProver{}, signerFunc(func(b []byte) ([]byte, error) {
			cancel()
			return signer.Sign(b)
		}), st)

		_, err = p.Issue(ctx, pipeline.IssueRequest{Identity: identity(), ThresholdAge: 18})
		assert.ErrorIs(t, err, context.Canceled)

		_, err = st.Get(context.Background(), key)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("missing photo", func(t *testing.T) {
		st := store.NewMemory()
		prover := &fakeProver{}
		p := newPipeline(t, prover, signerFunc(func(b []byte) ([]byte, error) { return b, nil }), st)

		id := identity()
		id.Photo = ""
		_, err := p.Issue(context.Background(), pipeline.IssueRequest{Identity: id, ThresholdAge: 18})
		var buildErr *certificate.DocumentBuildError
		assert.ErrorAs(t, err, &buildErr)

		_, err = st.Get(context.Background(), key)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPipeline_ReissueReplaces(t *testing.T) {
	ctx := context.Background()
	signer, err := xades.NewTestSigner()
	require.NoError(t, err)
	st := store.NewMemory()
	p := newPipeline(t, &fakeProver{}, signer, st)

	first, err := p.Issue(ctx, pipeline.IssueRequest{Identity: identity(), ThresholdAge: 18})
	require.NoError(t, err)
	second, err := p.Issue(ctx, pipeline.IssueRequest{Identity: identity(), ThresholdAge: 21})
	require.NoError(t, err)
	require.NotEqual(t, first.SignedDocument, second.SignedDocument)

	key := first.Key()
	got, err := p.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second.SignedDocument, got.SignedDocument)

	other, err := p.Issue(ctx, pipeline.IssueRequest{Identity: identity(), ThresholdAge: 18, CertificateType: "nOverAge"})
	require.NoError(t, err)
	assert.Equal(t, "nOverAge", other.CertificateType)

	deleted, err := p.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = p.Fetch(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = p.Verify(ctx, key, checker.Constraint{RequiredAge: 18, RequiredDate: date(2024, 6, 1)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.Fetch(ctx, other.Key())
	assert.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{})
	assert.Error(t, err)

	_, err = pipeline.New(pipeline.Config{
		Prover:  &fakeProver{},
		Signer:  signerFunc(func(b []byte) ([]byte, error) { return b, nil }),
		Store:   store.NewMemory(),
		Checker: checker.New(xades.NewVerifier()),
	})
	assert.Error(t, err, "issuer name is required")
}

func TestShareURL(t *testing.T) {
	key := store.Key{SubjectSystemID: "subject 42", CertificateType: "nAgeVerify"}
	assert.Equal(t,
		"https://zk.example.com/verifyproof?userId=subject+42&type=nAgeVerify",
		pipeline.ShareURL("https://zk.example.com/", key))
}
