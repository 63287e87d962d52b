package certificate

import "fmt"

// DocumentBuildError reports a certificate that cannot be built or parsed
// because a required field is absent or malformed.
type DocumentBuildError struct {
	Field  string
	Reason string
}

func (e *DocumentBuildError) Error() string {
	return fmt.Sprintf("certificate document: %s: %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &DocumentBuildError{Field: field, Reason: "required field is missing"}
}

func malformed(field string) error {
	return &DocumentBuildError{Field: field, Reason: "malformed value"}
}
