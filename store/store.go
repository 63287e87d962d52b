// Package store keeps the signed certificate of each subject, one per
// certificate type.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("certificate not found")

// Key identifies the single live record of a subject for a certificate type.
type Key struct {
	SubjectSystemID string
	CertificateType string
}

func (k Key) Validate() error {
	if k.SubjectSystemID == "" || k.CertificateType == "" {
		return errors.New("subject id and certificate type are required")
	}
	if strings.ContainsRune(k.SubjectSystemID, 0) || strings.ContainsRune(k.CertificateType, 0) {
		return errors.New("key contains a NUL byte")
	}
	return nil
}

func (k Key) String() string {
	return k.SubjectSystemID + "/" + k.CertificateType
}

func (k Key) bytes() []byte {
	return []byte("cert\x00" + k.CertificateType + "\x00" + k.SubjectSystemID)
}

// Record is a signed certificate document at rest.
type Record struct {
	SubjectSystemID string
	CertificateType string
	SignedDocument  []byte
	CreatedAt       time.Time
}

func (r *Record) Key() Key {
	return Key{SubjectSystemID: r.SubjectSystemID, CertificateType: r.CertificateType}
}

type recordJSON struct {
	SubjectSystemID string `json:"subjectSystemId"`
	CertificateType string `json:"certificateType"`
	SignedDocument  []byte `json:"signedDocument"`
	CreatedAt       int64  `json:"createdAt"`
}

// MarshalJSON stores CreatedAt as epoch seconds.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		SubjectSystemID: r.SubjectSystemID,
		CertificateType: r.CertificateType,
		SignedDocument:  r.SignedDocument,
		CreatedAt:       r.CreatedAt.Unix(),
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Record{
		SubjectSystemID: raw.SubjectSystemID,
		CertificateType: raw.CertificateType,
		SignedDocument:  raw.SignedDocument,
		CreatedAt:       time.Unix(raw.CreatedAt, 0).UTC(),
	}
	return nil
}

// Store persists records. Put replaces any existing record for the same key
// in a single write, so readers observe either the old or the new record.
type Store interface {
	Put(ctx context.Context, r *Record) error
	Get(ctx context.Context, k Key) (*Record, error)
	Delete(ctx context.Context, k Key) (bool, error)
	Close() error
}

func validateRecord(r *Record) error {
	if r == nil {
		return errors.New("record is required")
	}
	if err := r.Key().Validate(); err != nil {
		return err
	}
	if len(r.SignedDocument) == 0 {
		return fmt.Errorf("record %s has no signed document", r.Key())
	}
	return nil
}
