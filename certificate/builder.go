// Package certificate builds and parses the XML age-proof certificate
// that the xades package signs.
package certificate

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/zkp"
)

// Option customizes a document before it is validated.
type Option func(*Document)

// WithType sets the certificate type, nAgeVerify by default.
func WithType(t string) Option {
	return func(d *Document) { d.Type = t }
}

// WithName sets the human readable certificate name.
func WithName(name string) Option {
	return func(d *Document) { d.Name = name }
}

// Build assembles an unsigned certificate. Apart from the random serial
// number the result depends only on its arguments.
func Build(issuer Issuer, subject Subject, proof *zkp.Proof, claimedAge int, issueDate, expiryDate time.Time, opts ...Option) (*Document, error) {
	if proof == nil || len(proof.Data) == 0 {
		return nil, missing("CertificateData/AgeProof/Proof")
	}
	if claimedAge < 0 {
		return nil, malformed("CertificateData/AgeProof@claimedAge")
	}
	if !expiryDate.After(issueDate) {
		return nil, &DocumentBuildError{Field: "Certificate@expiryDate", Reason: "expiry must follow the issue date"}
	}

	subject.Photo.Data = NormalizePhoto(subject.Photo.Data)
	if subject.Photo.Format == "" {
		subject.Photo.Format = PhotoFormatJPEG
	}

	d := &Document{
		Name:       DefaultName,
		Type:       TypeAgeVerify,
		Number:     uuid.NewString(),
		IssueDate:  formatTime(issueDate),
		ExpiryDate: formatTime(expiryDate),
		Status:     StatusActive,
		IssuedBy:   IssuedBy{Organization: issuer},
		IssuedTo:   IssuedTo{Person: subject},
		Data: CertificateData{
			AgeProof: AgeProof{
				ClaimedAge:     claimedAge,
				Circuit:        zkp.CircuitName,
				CircuitVersion: zkp.CircuitVersion,
				Proof:          base64.StdEncoding.EncodeToString(proof.Data),
				PublicSignals:  append([]string(nil), proof.PublicSignals...),
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Marshal serializes the document as UTF-8 XML with a declaration.
func (d *Document) Marshal() ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Parse decodes a (signed or unsigned) certificate. Any signature element
// is ignored; verifying it is the caller's job.
func Parse(b []byte) (*Document, error) {
	var d Document
	if err := xml.Unmarshal(b, &d); err != nil {
		return nil, &DocumentBuildError{Field: "Certificate", Reason: "not a certificate document"}
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReferenceDate is the day as of which the embedded claim was proved.
func (d *Document) ReferenceDate() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, d.IssueDate)
	if err != nil {
		return time.Time{}, malformed("Certificate@issueDate")
	}
	return claims.TruncateDay(t), nil
}

// ExpiresAt returns the expiry instant.
func (d *Document) ExpiresAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, d.ExpiryDate)
	if err != nil {
		return time.Time{}, malformed("Certificate@expiryDate")
	}
	return t, nil
}

// Proof decodes the embedded zero-knowledge proof.
func (d *Document) Proof() (*zkp.Proof, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.Data.AgeProof.Proof))
	if err != nil || len(data) == 0 {
		return nil, malformed("CertificateData/AgeProof/Proof")
	}
	return &zkp.Proof{
		Data:          data,
		PublicSignals: append([]string(nil), d.Data.AgeProof.PublicSignals...),
	}, nil
}

// NormalizePhoto strips a data URL prefix and surrounding whitespace from
// a base64 photo.
func NormalizePhoto(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return s
}

func (d *Document) validate() error {
	switch {
	case d.Type == "":
		return missing("Certificate@type")
	case d.Number == "":
		return missing("Certificate@number")
	case d.IssuedBy.Organization.Name == "":
		return missing("IssuedBy/Organization@name")
	case d.IssuedTo.Person.SystemID == "":
		return missing("IssuedTo/Person@uid")
	case d.IssuedTo.Person.Name == "":
		return missing("IssuedTo/Person@name")
	case d.IssuedTo.Person.Photo.Data == "":
		return missing("IssuedTo/Person/Photo")
	case d.Data.AgeProof.Proof == "":
		return missing("CertificateData/AgeProof/Proof")
	case d.Data.AgeProof.ClaimedAge < 0:
		return malformed("CertificateData/AgeProof@claimedAge")
	}

	if _, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.IssuedTo.Person.Photo.Data)); err != nil {
		return malformed("IssuedTo/Person/Photo")
	}
	if _, err := d.ReferenceDate(); err != nil {
		return err
	}
	if _, err := d.ExpiresAt(); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
