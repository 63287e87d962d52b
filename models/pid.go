package models

import (
	"errors"
	"strings"

	"github.com/mynextid/zkcert/claims"
)

// EUDI Personal Identification Data (PID) as delivered by a wallet in SD-JWT
// VC form. Only the attributes an age certificate needs are modeled.

// PersonIdentificationData is the subset of the PID rulebook attributes
// consumed when issuing age certificates.
type PersonIdentificationData struct {
	// Base type - should be "urn:eudi:pid:1"
	VCT string `json:"vct"`

	FamilyName string `json:"family_name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	BirthDate  string `json:"birthdate,omitempty"` // ISO 8601-1, YYYY-MM-DD format
	Picture    string `json:"picture,omitempty"`   // data URL with base64-encoded JPEG

	PersonalAdministrativeNumber string `json:"personal_administrative_number,omitempty"`
	IssuingCountry               string `json:"issuing_country,omitempty"`
}

// Identity maps a PID onto the identity the certificate pipeline consumes.
// subjectSystemID is the caller's internal subject id; the PID
// administrative number is never used as one.
func (p *PersonIdentificationData) Identity(subjectSystemID string) (VerifiedIdentity, error) {
	if subjectSystemID == "" {
		return VerifiedIdentity{}, errors.New("subject system id is required")
	}
	name := strings.TrimSpace(strings.Join([]string{p.GivenName, p.FamilyName}, " "))
	if name == "" {
		return VerifiedIdentity{}, errors.New("pid has no name")
	}
	dob, err := claims.ParseDate(p.BirthDate)
	if err != nil {
		return VerifiedIdentity{}, errors.New("pid has no valid birthdate")
	}
	if p.Picture == "" {
		return VerifiedIdentity{}, errors.New("pid has no picture")
	}
	return VerifiedIdentity{
		SubjectSystemID: subjectSystemID,
		FullName:        name,
		DateOfBirth:     dob,
		Photo:           p.Picture,
	}, nil
}

const demoPicture = "data:image/jpeg;base64,/9j/4AAQSkZJRgABAQEAYABgAAD/2wBDAAgGBgcGBQgHBwcJCQgKDBQNDAsLDBkSEw8UHRofHh0aHBwgJC4nICIsIxwcKDcpLDAxNDQ0Hyc5PTgyPC4zNDL/2wBDAQkJCQwLDBgNDRgyIRwhMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjL/wAARCAABAAEDASIAAhEBAxEB/8QAFQABAQAAAAAAAAAAAAAAAAAAAAv/xAAUEAEAAAAAAAAAAAAAAAAAAAAA/8QAFQEBAQAAAAAAAAAAAAAAAAAAAAX/xAAUEQEAAAAAAAAAAAAAAAAAAAAA/9oADAMBAAIRAxEAPwCwAA//2Q=="

// GetDemoPID returns a demo PID for testing and examples
func GetDemoPID() *PersonIdentificationData {
	return &PersonIdentificationData{
		VCT:                          "urn:eudi:pid:1",
		FamilyName:                   "Muller",
		GivenName:                    "Erika",
		BirthDate:                    "1985-03-15",
		Picture:                      demoPicture,
		PersonalAdministrativeNumber: "123456789012",
		IssuingCountry:               "DE",
	}
}

// GetDemoPIDUnder18 returns a demo PID of a minor
func GetDemoPIDUnder18() *PersonIdentificationData {
	pid := GetDemoPID()
	pid.BirthDate = "2024-03-15"
	return pid
}
