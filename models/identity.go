package models

import "time"

// VerifiedIdentity is a subject identity already authenticated upstream.
// Nothing in this module re-verifies it.
type VerifiedIdentity struct {
	SubjectSystemID string    `json:"subjectSystemId"`
	FullName        string    `json:"fullName"`
	DateOfBirth     time.Time `json:"dateOfBirth"`
	Photo           string    `json:"photo"` // base64 JPEG, data URL accepted
}

// CircuitInfo describes the proving circuit a deployment has loaded.
type CircuitInfo struct {
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Loaded    bool   `json:"loaded"`
	Integrity string `json:"integrity,omitempty"` // sha256 of the verifying key, hex
}
