package claims_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mynextid/zkcert/claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := claims.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		dob       string
		want      int
	}{
		{"after birthday", "2024-02-01", "2000-01-15", 24},
		{"on birthday", "2024-01-15", "2000-01-15", 24},
		{"day before birthday", "2024-01-14", "2000-01-15", 23},
		{"earlier month", "2024-01-31", "2000-02-01", 23},
		{"leap day born, non leap year", "2023-02-28", "2004-02-29", 18},
		{"leap day born, march first", "2023-03-01", "2004-02-29", 19},
		{"same day", "2000-01-15", "2000-01-15", 0},
		{"reference before birth", "1999-01-15", "2000-01-15", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, claims.AgeAt(date(t, tt.reference), date(t, tt.dob)))
		})
	}
}

func TestAgeAt_NotDaysDividedBy365(t *testing.T) {
	// 18 * 365 days after the date of birth falls before the 18th birthday
	// because of leap days.
	dob := date(t, "2000-03-01")
	ref := dob.AddDate(0, 0, 18*365)
	assert.Equal(t, 17, claims.AgeAt(ref, dob))
}

func TestAssertClaimTruthful(t *testing.T) {
	dob := date(t, "2000-01-15")

	err := claims.AssertClaimTruthful(claims.AgeClaim{
		DateOfBirth:         dob,
		ClaimedThresholdAge: 21,
		ReferenceDate:       date(t, "2024-02-01"),
	})
	assert.NoError(t, err)

	err = claims.AssertClaimTruthful(claims.AgeClaim{
		DateOfBirth:         dob,
		ClaimedThresholdAge: 25,
		ReferenceDate:       date(t, "2024-02-01"),
	})
	var mismatch *claims.ClaimMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 25, mismatch.Threshold)
	assert.NotContains(t, err.Error(), "2000")
	assert.NotContains(t, err.Error(), "24")

	err = claims.AssertClaimTruthful(claims.AgeClaim{
		DateOfBirth:         dob,
		ClaimedThresholdAge: -1,
		ReferenceDate:       date(t, "2024-02-01"),
	})
	assert.Error(t, err)
}

func TestBoundaryConversions(t *testing.T) {
	want := date(t, "2000-01-15")

	fromSeconds := claims.FromEpochSeconds(want.Unix() + 3600)
	assert.True(t, want.Equal(fromSeconds))

	fromMillis, err := claims.FromEpochMillisString("947894400000")
	require.NoError(t, err)
	assert.True(t, want.Equal(fromMillis))

	assert.Equal(t, want.Unix(), claims.ToEpochSeconds(want.Add(23*time.Hour)))

	_, err = claims.FromEpochMillisString("2000-01-15")
	assert.ErrorIs(t, err, claims.ErrInvalidTimestamp)
	assert.NotContains(t, err.Error(), "2000-01-15")

	_, err = claims.ParseDate("15/01/2000")
	assert.ErrorIs(t, err, claims.ErrInvalidDate)
	assert.NotContains(t, err.Error(), "15/01/2000")
}

func TestTruncateDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 2024-02-01 02:00 IST is still 2024-01-31 in UTC
	in := time.Date(2024, 2, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-31", claims.FormatDate(claims.TruncateDay(in)))

	day, month, year := claims.CircuitDate(date(t, "2024-02-01"))
	assert.Equal(t, []int{1, 2, 2024}, []int{day, month, year})
}
