package certificate

import "encoding/xml"

const (
	TypeAgeVerify   = "nAgeVerify"
	DefaultName     = "Age Verification Certificate"
	StatusActive    = "A"
	PhotoFormatJPEG = "jpeg"
)

// Document is the certificate as serialized before signing. Issuer and
// subject identity live in attributes; photo and proof payloads are base64
// text content. The signature module hashes the literal serialized form,
// so field order and attr/element placement here are part of the format.
type Document struct {
	XMLName    xml.Name        `xml:"Certificate"`
	Name       string          `xml:"name,attr"`
	Type       string          `xml:"type,attr"`
	Number     string          `xml:"number,attr"`
	IssueDate  string          `xml:"issueDate,attr"`
	ExpiryDate string          `xml:"expiryDate,attr"`
	Status     string          `xml:"status,attr"`
	IssuedBy   IssuedBy        `xml:"IssuedBy"`
	IssuedTo   IssuedTo        `xml:"IssuedTo"`
	Data       CertificateData `xml:"CertificateData"`
}

type IssuedBy struct {
	Organization Issuer `xml:"Organization"`
}

// Issuer identifies the organization that signs certificates.
type Issuer struct {
	Name    string  `xml:"name,attr" json:"name"`
	Code    string  `xml:"code,attr,omitempty" json:"code,omitempty"`
	TIN     string  `xml:"tin,attr,omitempty" json:"tin,omitempty"`
	UID     string  `xml:"uid,attr,omitempty" json:"uid,omitempty"`
	Type    string  `xml:"type,attr,omitempty" json:"type,omitempty"`
	Address Address `xml:"Address" json:"address"`
}

type Address struct {
	Line1    string `xml:"line1,attr,omitempty" json:"line1,omitempty"`
	Line2    string `xml:"line2,attr,omitempty" json:"line2,omitempty"`
	House    string `xml:"house,attr,omitempty" json:"house,omitempty"`
	Landmark string `xml:"landmark,attr,omitempty" json:"landmark,omitempty"`
	Locality string `xml:"locality,attr,omitempty" json:"locality,omitempty"`
	VTC      string `xml:"vtc,attr,omitempty" json:"vtc,omitempty"`
	District string `xml:"district,attr,omitempty" json:"district,omitempty"`
	Pin      string `xml:"pin,attr,omitempty" json:"pin,omitempty"`
	State    string `xml:"state,attr,omitempty" json:"state,omitempty"`
	Country  string `xml:"country,attr,omitempty" json:"country,omitempty"`
}

type IssuedTo struct {
	Person Subject `xml:"Person"`
}

// Subject is the certificate holder. SystemID is the opaque internal
// subject identifier, not a login identity.
type Subject struct {
	SystemID string `xml:"uid,attr"`
	Name     string `xml:"name,attr"`
	Photo    Photo  `xml:"Photo"`
}

type Photo struct {
	Format string `xml:"format,attr"`
	Data   string `xml:",chardata"` // base64
}

type CertificateData struct {
	AgeProof AgeProof `xml:"AgeProof"`
}

// AgeProof carries the zero-knowledge proof that the subject was at least
// ClaimedAge years old on the certificate issue date.
type AgeProof struct {
	ClaimedAge     int      `xml:"claimedAge,attr"`
	Circuit        string   `xml:"circuit,attr"`
	CircuitVersion int      `xml:"circuitVersion,attr"`
	Proof          string   `xml:"Proof"` // base64
	PublicSignals  []string `xml:"PublicSignals>Signal"`
}
