// Package pipeline sequences certificate issuance and verification:
// claim check, proof, document, signature, store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/checker"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/models"
	"github.com/mynextid/zkcert/store"
	"github.com/mynextid/zkcert/zkp"
)

// Logger is satisfied by *slog.Logger and server.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Prover is satisfied by *zkp.Engine.
type Prover interface {
	GenerateProof(ctx context.Context, in zkp.CircuitInputs) (*zkp.Proof, error)
}

// DocumentSigner is satisfied by *xades.Signer.
type DocumentSigner interface {
	Sign(document []byte) ([]byte, error)
}

type Config struct {
	Prover  Prover
	Signer  DocumentSigner
	Store   store.Store
	Checker *checker.Checker
	Issuer  certificate.Issuer

	// CertificateType defaults to certificate.TypeAgeVerify.
	CertificateType string
	CertificateName string
	// Validity defaults to one calendar year.
	Validity time.Duration

	Clock  func() time.Time
	Logger Logger
}

// Pipeline is built once at start-up and shared by all requests.
type Pipeline struct {
	prover   Prover
	signer   DocumentSigner
	store    store.Store
	checker  *checker.Checker
	issuer   certificate.Issuer
	certType string
	certName string
	validity time.Duration
	clock    func() time.Time
	logger   Logger
}

func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Prover == nil:
		return nil, errors.New("pipeline: prover is required")
	case cfg.Signer == nil:
		return nil, errors.New("pipeline: signer is required")
	case cfg.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case cfg.Checker == nil:
		return nil, errors.New("pipeline: checker is required")
	case cfg.Issuer.Name == "":
		return nil, errors.New("pipeline: issuer name is required")
	}

	p := &Pipeline{
		prover:   cfg.Prover,
		signer:   cfg.Signer,
		store:    cfg.Store,
		checker:  cfg.Checker,
		issuer:   cfg.Issuer,
		certType: cfg.CertificateType,
		certName: cfg.CertificateName,
		validity: cfg.Validity,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if p.certType == "" {
		p.certType = certificate.TypeAgeVerify
	}
	if p.certName == "" {
		p.certName = certificate.DefaultName
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// IssueRequest asks for a certificate attesting that the subject is at
// least ThresholdAge years old on the issue date.
type IssueRequest struct {
	Identity     models.VerifiedIdentity
	ThresholdAge int
	// CertificateType overrides the pipeline default.
	CertificateType string
	// IssueDate defaults to now. Its day is the claim's reference date.
	IssueDate time.Time
}

// Issue runs claim check, proof, document, signature and store in that
// order. Nothing is stored unless every earlier stage succeeded and ctx is
// still live after signing.
func (p *Pipeline) Issue(ctx context.Context, req IssueRequest) (*store.Record, error) {
	id := req.Identity
	key := store.Key{SubjectSystemID: id.SubjectSystemID, CertificateType: req.CertificateType}
	if key.CertificateType == "" {
		key.CertificateType = p.certType
	}
	if err := key.Validate(); err != nil {
		return nil, &certificate.DocumentBuildError{Field: "IssuedTo/Person@uid", Reason: err.Error()}
	}

	issued := req.IssueDate
	if issued.IsZero() {
		issued = p.clock()
	}
	issued = issued.UTC().Truncate(time.Second)

	claim := claims.AgeClaim{
		DateOfBirth:         claims.TruncateDay(id.DateOfBirth),
		ClaimedThresholdAge: req.ThresholdAge,
		ReferenceDate:       claims.TruncateDay(issued),
	}
	if err := claims.AssertClaimTruthful(claim); err != nil {
		p.logger.Info("Claim rejected", "subject", key.SubjectSystemID, "threshold", req.ThresholdAge)
		return nil, err
	}

	start := p.clock()
	proof, err := p.prover.GenerateProof(ctx, zkp.InputsFromClaim(claim))
	if err != nil {
		p.logProofFailure(key, err)
		return nil, err
	}
	p.logger.Debug("Proof generated", "subject", key.SubjectSystemID, "duration", p.clock().Sub(start))

	doc, err := certificate.Build(
		p.issuer,
		certificate.Subject{
			SystemID: id.SubjectSystemID,
			Name:     id.FullName,
			Photo:    certificate.Photo{Data: id.Photo},
		},
		proof,
		req.ThresholdAge,
		issued,
		p.expiry(issued),
		certificate.WithType(key.CertificateType),
		certificate.WithName(p.certName),
	)
	if err != nil {
		return nil, err
	}

	unsigned, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	signed, err := p.signer.Sign(unsigned)
	if err != nil {
		p.logger.Error("Signing failed", "subject", key.SubjectSystemID, "error", err)
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &store.Record{
		SubjectSystemID: key.SubjectSystemID,
		CertificateType: key.CertificateType,
		SignedDocument:  signed,
		CreatedAt:       p.clock().UTC(),
	}
	if err := p.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store certificate: %w", err)
	}

	p.logger.Info("Certificate issued",
		"subject", key.SubjectSystemID,
		"type", key.CertificateType,
		"number", doc.Number,
		"claimedAge", req.ThresholdAge,
	)
	return rec, nil
}

// logProofFailure logs only the reason of a proof failure; wrapped causes
// may quote witness values.
func (p *Pipeline) logProofFailure(key store.Key, err error) {
	var pge *zkp.ProofGenerationError
	if errors.As(err, &pge) {
		p.logger.Warn("Proof generation failed", "subject", key.SubjectSystemID, "reason", pge.Reason)
		return
	}
	p.logger.Warn("Proof generation failed", "subject", key.SubjectSystemID, "error", err)
}

func (p *Pipeline) expiry(issued time.Time) time.Time {
	if p.validity > 0 {
		return issued.Add(p.validity)
	}
	return issued.AddDate(1, 0, 0)
}

// DefaultType is the certificate type used when a request names none.
func (p *Pipeline) DefaultType() string {
	return p.certType
}

func (p *Pipeline) Fetch(ctx context.Context, key store.Key) (*store.Record, error) {
	return p.store.Get(ctx, key)
}

func (p *Pipeline) Delete(ctx context.Context, key store.Key) (bool, error) {
	deleted, err := p.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if deleted {
		p.logger.Info("Certificate deleted", "subject", key.SubjectSystemID, "type", key.CertificateType)
	}
	return deleted, nil
}

// Verify checks the stored certificate for key against c.
func (p *Pipeline) Verify(ctx context.Context, key store.Key, c checker.Constraint) (*checker.Result, error) {
	rec, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.VerifyDocument(ctx, rec.SignedDocument, c)
}

// VerifyDocument checks a signed certificate obtained out of band.
func (p *Pipeline) VerifyDocument(ctx context.Context, signed []byte, c checker.Constraint) (*checker.Result, error) {
	res, err := p.checker.Check(ctx, signed, c)
	if err != nil {
		return nil, err
	}
	if !res.Accepted {
		p.logger.Info("Constraint rejected", "reason", res.Reason)
	}
	return res, nil
}

// ShareURL returns the link a verifier resolves to fetch the signed
// certificate. Possession of the link is the authorization to view it.
func ShareURL(origin string, key store.Key) string {
	return fmt.Sprintf("%s/verifyproof?userId=%s&type=%s",
		strings.TrimRight(origin, "/"),
		url.QueryEscape(key.SubjectSystemID),
		url.QueryEscape(key.CertificateType),
	)
}
