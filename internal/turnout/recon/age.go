package recon

import (
	"strconv"
	"strings"
)

// AgeGroup buckets a registry birth year for an election held in
// electionYear. Missing or non-integer birth years share the under-18 bucket;
// the census does not separate them either.
func AgeGroup(birthYear string, electionYear int) string {
	birthYear = strings.TrimSpace(birthYear)
	if birthYear == "" {
		return AgeInvalid
	}
	year, err := strconv.Atoi(birthYear)
	if err != nil {
		return AgeInvalid
	}

	age := electionYear - year
	switch {
	case age < 18:
		return AgeInvalid
	case age <= 25:
		return Age18To25
	case age <= 40:
		return Age26To40
	case age <= 65:
		return Age41To65
	default:
		return AgeOver66
	}
}
