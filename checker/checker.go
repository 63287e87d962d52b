// Package checker decides whether a signed age certificate satisfies a
// verifier's (date, age) requirement.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/xades"
	"github.com/mynextid/zkcert/zkp"
)

type Reason string

const (
	ReasonSignatureInvalid Reason = "SignatureInvalid"
	ReasonProofInvalid     Reason = "ProofInvalid"
	ReasonConstraintNotMet Reason = "ConstraintNotMet"
)

// Constraint is a verifier's request: the subject was at least RequiredAge
// years old on RequiredDate.
type Constraint struct {
	RequiredDate time.Time
	RequiredAge  int
}

type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

func reject(reason Reason, detail string) *Result {
	return &Result{Reason: reason, Detail: detail}
}

// SignatureVerifier is satisfied by *xades.Verifier.
type SignatureVerifier interface {
	Validate(signed []byte) error
}

// ProofVerifier is satisfied by *zkp.Engine.
type ProofVerifier interface {
	VerifyClaim(p *zkp.Proof, threshold int, referenceDate time.Time) error
}

type Checker struct {
	signatures SignatureVerifier
	proofs     ProofVerifier
}

type Option func(*Checker)

// WithProofVerifier re-verifies the embedded proof against the certificate's
// claimed age and issue date.
func WithProofVerifier(p ProofVerifier) Option {
	return func(c *Checker) {
		c.proofs = p
	}
}

func New(signatures SignatureVerifier, opts ...Option) *Checker {
	c := &Checker{signatures: signatures}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the gates in order and stops at the first failure. A rejected
// constraint is a normal outcome reported in Result; the error return is
// reserved for documents that are validly signed yet unreadable, and for
// context cancellation.
//
// A certificate claiming "age >= N on day D" satisfies requests for an age
// of at most N on a day no earlier than D.
func (c *Checker) Check(ctx context.Context, signed []byte, req Constraint) (*Result, error) {
	if err := c.signatures.Validate(signed); err != nil {
		var rej *xades.VerificationError
		switch {
		case errors.Is(err, xades.ErrSignatureNotFound):
			return reject(ReasonSignatureInvalid, "signature not found"), nil
		case errors.As(err, &rej), errors.Is(err, xades.ErrMalformedDocument):
			return reject(ReasonSignatureInvalid, "signature invalid"), nil
		default:
			return nil, err
		}
	}

	doc, err := certificate.Parse(signed)
	if err != nil {
		return nil, fmt.Errorf("signed document is not a certificate: %w", err)
	}
	reference, err := doc.ReferenceDate()
	if err != nil {
		return nil, err
	}
	claimedAge := doc.Data.AgeProof.ClaimedAge

	if c.proofs != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		proof, err := doc.Proof()
		if err != nil {
			return reject(ReasonProofInvalid, "proof missing or malformed"), nil
		}
		if err := c.proofs.VerifyClaim(proof, claimedAge, reference); err != nil {
			return reject(ReasonProofInvalid, "proof does not verify"), nil
		}
	}

	if claims.TruncateDay(req.RequiredDate).Before(reference) {
		return reject(ReasonConstraintNotMet, "required date precedes the certificate issue date"), nil
	}
	if req.RequiredAge > claimedAge {
		return reject(ReasonConstraintNotMet, "required age exceeds the certified age"), nil
	}
	return &Result{Accepted: true}, nil
}
