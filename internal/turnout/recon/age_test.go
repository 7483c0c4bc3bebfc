package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgeGroupBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		birthYear string
		want      string
	}{
		{birthYear: "2007", want: Age18To25},
		{birthYear: "2008", want: AgeInvalid},
		{birthYear: "2000", want: Age18To25},
		{birthYear: "1999", want: Age26To40},
		{birthYear: "1985", want: Age26To40},
		{birthYear: "1984", want: Age41To65},
		{birthYear: "1960", want: Age41To65},
		{birthYear: "1959", want: AgeOver66},
		{birthYear: "1900", want: AgeOver66},
		{birthYear: " 1980 ", want: Age41To65},
		{birthYear: "", want: AgeInvalid},
		{birthYear: "   ", want: AgeInvalid},
		{birthYear: "19x0", want: AgeInvalid},
		{birthYear: "3000", want: AgeInvalid},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, AgeGroup(tt.birthYear, 2025), "birth year %q", tt.birthYear)
	}
}
