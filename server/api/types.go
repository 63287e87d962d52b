package api

import (
	"time"

	"github.com/mynextid/zkcert/models"
)

// ==== Request/Response Types ====

// IssueCertificateRequest carries an identity verified upstream. The date of
// birth is given either as YYYY-MM-DD or as epoch milliseconds.
type IssueCertificateRequest struct {
	SubjectSystemID    string `json:"subjectSystemId"`
	FullName           string `json:"fullName"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"`
	DateOfBirthEpochMs string `json:"dateOfBirthEpochMs,omitempty"`
	Photo              string `json:"photo"`
	ThresholdAge       int    `json:"thresholdAge"`
	CertificateType    string `json:"certificateType,omitempty"`
}

// CertificateResponse is a stored certificate with its share link
type CertificateResponse struct {
	SubjectSystemID string `json:"subjectSystemId"`
	CertificateType string `json:"certificateType"`
	CreatedAt       int64  `json:"createdAt"` // epoch seconds
	Document        string `json:"document"`  // signed XML
	ShareURL        string `json:"shareUrl"`
}

// DeleteResponse acknowledges a delete request
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ShareLinkResponse carries the verifier link of a certificate
type ShareLinkResponse struct {
	URL string `json:"url"`
}

// CheckRequest is a verifier's requirement. RequiredDate is YYYY-MM-DD.
type CheckRequest struct {
	RequiredAge  int    `json:"requiredAge"`
	RequiredDate string `json:"requiredDate"`
}

// VerifyRequest represents a raw proof verification request
type VerifyRequest struct {
	Proof         string   `json:"proof"` // base64 encoded
	PublicSignals []string `json:"publicSignals"`
}

// VerifyResponse represents a proof verification response
type VerifyResponse struct {
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitListResponse represents a list of circuits
type CircuitListResponse struct {
	Circuits []models.CircuitInfo `json:"circuits"`
	Count    int                  `json:"count"`
}
