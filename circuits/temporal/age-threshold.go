package ct

import (
	"github.com/consensys/gnark/frontend"
)

// Circuit functions
// - range check the date of birth and the reference date
// - compute the full years elapsed between them
// - compare the age with the public threshold
//
// Only the threshold and the reference date are public; whether the
// comparison holds is the single bit a verifier learns.
type AgeThreshold struct {
	// Secret input
	DobDay   frontend.Variable `gnark:",secret"`
	DobMonth frontend.Variable `gnark:",secret"`
	DobYear  frontend.Variable `gnark:",secret"`

	// Public input
	AgeThreshold frontend.Variable `gnark:",public"`
	CurrentDay   frontend.Variable `gnark:",public"`
	CurrentMonth frontend.Variable `gnark:",public"`
	CurrentYear  frontend.Variable `gnark:",public"`
}

const (
	dayBits   = 5  // day-1 in [0, 32)
	monthBits = 4  // month-1 in [0, 16)
	yearBits  = 12 // year in [0, 4096)
	ageBits   = 8  // age and threshold in [0, 256)
)

func (c *AgeThreshold) Define(api frontend.API) error {
	assertDate(api, c.DobDay, c.DobMonth, c.DobYear)
	assertDate(api, c.CurrentDay, c.CurrentMonth, c.CurrentYear)
	api.ToBinary(c.AgeThreshold, ageBits)

	// month*32+day orders (month, day) pairs lexicographically
	dob := api.Add(api.Mul(c.DobMonth, 32), c.DobDay)
	current := api.Add(api.Mul(c.CurrentMonth, 32), c.CurrentDay)

	// 1 if the anniversary is still ahead in the current year
	notYet := api.IsZero(api.Sub(api.Cmp(dob, current), 1))

	age := api.Sub(api.Sub(c.CurrentYear, c.DobYear), notYet)

	// a negative age wraps around the field and fails the decomposition
	api.ToBinary(age, ageBits)
	api.AssertIsLessOrEqual(c.AgeThreshold, age)

	return nil
}

func assertDate(api frontend.API, day, month, year frontend.Variable) {
	api.ToBinary(api.Sub(day, 1), dayBits)
	api.AssertIsLessOrEqual(day, 31)

	api.ToBinary(api.Sub(month, 1), monthBits)
	api.AssertIsLessOrEqual(month, 12)

	api.ToBinary(year, yearBits)
}
