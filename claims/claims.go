// Package claims holds the date arithmetic behind age claims: boundary
// conversions into the canonical UTC day representation and the
// full-years-elapsed age computation.
package claims

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date layout used at the edges.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTimestamp = errors.New("invalid epoch milliseconds")
)

// AgeClaim asserts that the holder of DateOfBirth is at least
// ClaimedThresholdAge years old on ReferenceDate.
type AgeClaim struct {
	DateOfBirth         time.Time
	ClaimedThresholdAge int
	ReferenceDate       time.Time
}

// ClaimMismatchError is returned when a claim does not hold. The message
// deliberately carries neither the date of birth nor the computed age.
type ClaimMismatchError struct {
	Threshold int
}

func (e *ClaimMismatchError) Error() string {
	return fmt.Sprintf("claim mismatch: age threshold %d is not satisfied on the reference date", e.Threshold)
}

// TruncateDay returns t as midnight UTC of its UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AgeAt returns the number of full calendar years elapsed between dob and
// reference. The result is negative when reference precedes dob.
func AgeAt(reference, dob time.Time) int {
	ry, rm, rd := reference.UTC().Date()
	by, bm, bd := dob.UTC().Date()

	age := ry - by
	if rm < bm || (rm == bm && rd < bd) {
		age--
	}
	return age
}

// AssertClaimTruthful fails with *ClaimMismatchError when the claim does
// not hold. It must pass before any proof is generated for the claim.
func AssertClaimTruthful(claim AgeClaim) error {
	if claim.ClaimedThresholdAge < 0 {
		return fmt.Errorf("invalid age threshold %d", claim.ClaimedThresholdAge)
	}
	if AgeAt(claim.ReferenceDate, claim.DateOfBirth) < claim.ClaimedThresholdAge {
		return &ClaimMismatchError{Threshold: claim.ClaimedThresholdAge}
	}
	return nil
}

// CircuitDate splits t into the integer (day, month, year) triple consumed
// by the age circuit.
func CircuitDate(t time.Time) (day, month, year int) {
	y, m, d := t.UTC().Date()
	return d, int(m), y
}

// ==== Boundary conversions ====

// FromEpochSeconds converts a stored epoch-seconds timestamp.
func FromEpochSeconds(sec int64) time.Time {
	return TruncateDay(time.Unix(sec, 0))
}

// FromEpochMillisString converts the epoch-milliseconds string format some
// identity sources emit. Parse errors do not echo the input since it is
// usually a date of birth.
func FromEpochMillisString(ms string) (time.Time, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return TruncateDay(time.UnixMilli(v)), nil
}

// ToEpochSeconds is the at-rest representation of a date.
func ToEpochSeconds(t time.Time) int64 {
	return TruncateDay(t).Unix()
}

// ParseDate parses a YYYY-MM-DD calendar date as a UTC day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
