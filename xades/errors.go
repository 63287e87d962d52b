package xades

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureNotFound is returned when the document root carries no ds:Signature.
	ErrSignatureNotFound = errors.New("signature not found")
	// ErrAlreadySigned is returned when signing a document that is already signed.
	ErrAlreadySigned = errors.New("document already signed")
	// ErrMalformedDocument is returned when the input is not well-formed XML.
	ErrMalformedDocument = errors.New("malformed document")
)

// VerificationError describes why a present signature was rejected.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature rejected: %s", e.Reason)
}

func rejected(format string, args ...any) error {
	return &VerificationError{Reason: fmt.Sprintf(format, args...)}
}
