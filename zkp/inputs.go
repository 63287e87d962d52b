package zkp

import (
	"time"

	ct "github.com/mynextid/zkcert/circuits/temporal"
	"github.com/mynextid/zkcert/claims"
)

const (
	maxYear = 1<<12 - 1
	maxAge  = 1<<8 - 1
)

// CircuitInputs are the plain integer inputs of the age circuit. The
// current date is the claim reference date, never the wall clock.
type CircuitInputs struct {
	DobDay   int
	DobMonth int
	DobYear  int

	AgeThreshold int
	CurrentDay   int
	CurrentMonth int
	CurrentYear  int
}

// InputsFromClaim splits an age claim into circuit inputs.
func InputsFromClaim(claim claims.AgeClaim) CircuitInputs {
	dd, dm, dy := claims.CircuitDate(claim.DateOfBirth)
	cd, cm, cy := claims.CircuitDate(claim.ReferenceDate)
	return CircuitInputs{
		DobDay:       dd,
		DobMonth:     dm,
		DobYear:      dy,
		AgeThreshold: claim.ClaimedThresholdAge,
		CurrentDay:   cd,
		CurrentMonth: cm,
		CurrentYear:  cy,
	}
}

// Validate rejects inputs the circuit cannot satisfy: impossible calendar
// dates, years outside the circuit range, negative ages and thresholds.
func (in CircuitInputs) Validate() error {
	if !validDate(in.DobDay, in.DobMonth, in.DobYear) {
		return &ProofGenerationError{Reason: "date of birth is not a valid calendar date"}
	}
	if !validDate(in.CurrentDay, in.CurrentMonth, in.CurrentYear) {
		return &ProofGenerationError{Reason: "reference date is not a valid calendar date"}
	}
	if in.AgeThreshold < 0 || in.AgeThreshold > maxAge {
		return &ProofGenerationError{Reason: "age threshold out of range"}
	}

	dob := time.Date(in.DobYear, time.Month(in.DobMonth), in.DobDay, 0, 0, 0, 0, time.UTC)
	ref := time.Date(in.CurrentYear, time.Month(in.CurrentMonth), in.CurrentDay, 0, 0, 0, 0, time.UTC)
	if age := claims.AgeAt(ref, dob); age < 0 || age > maxAge {
		return &ProofGenerationError{Reason: "age out of range"}
	}
	return nil
}

func (in CircuitInputs) assignment() *ct.AgeThreshold {
	return &ct.AgeThreshold{
		DobDay:       in.DobDay,
		DobMonth:     in.DobMonth,
		DobYear:      in.DobYear,
		AgeThreshold: in.AgeThreshold,
		CurrentDay:   in.CurrentDay,
		CurrentMonth: in.CurrentMonth,
		CurrentYear:  in.CurrentYear,
	}
}

func validDate(day, month, year int) bool {
	if year < 1 || year > maxYear || month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month && t.Year() == year
}
