package recon

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// StatTypeVoter is the census statistic type holding registration counts.
const StatTypeVoter = "voter"

// CensusRow is one census line after column mapping. TotalVoters is kept raw
// so the builder decides what an unusable count means.
type CensusRow struct {
	County        string
	ElectionDate  string
	StatType      string
	Precinct      string
	VTD           string
	PartyCode     string
	RaceCode      string
	EthnicityCode string
	SexCode       string
	AgeGroup      string
	TotalVoters   string
}

// Denominator is the registered count per bucket of one election.
type Denominator struct {
	Counts []RegisteredCount
	// Dropped counts rows whose total did not parse as an integer.
	Dropped int
}

// BuildDenominator sums the voter-registration rows of the election labelled
// nativeLabel into buckets dated electionDate. Rows are pre-split finer than
// the bucket key upstream (precinct, VTD), so this is a re-aggregation.
func BuildDenominator(rows []CensusRow, electionDate, nativeLabel string) Denominator {
	fold := cases.Fold()
	voter := fold.String(StatTypeVoter)

	var out Denominator
	sums := make(map[BucketKey]int64)
	for _, row := range rows {
		total, err := strconv.ParseInt(strings.TrimSpace(row.TotalVoters), 10, 64)
		if err != nil {
			out.Dropped++
			continue
		}
		if row.ElectionDate != nativeLabel || fold.String(row.StatType) != voter {
			continue
		}
		key := BucketKey{
			ElectionDate:  electionDate,
			County:        row.County,
			PartyCode:     row.PartyCode,
			RaceCode:      row.RaceCode,
			EthnicityCode: row.EthnicityCode,
			SexCode:       row.SexCode,
			AgeGroup:      row.AgeGroup,
		}
		sums[key] += total
	}

	out.Counts = make([]RegisteredCount, 0, len(sums))
	for key, n := range sums {
		out.Counts = append(out.Counts, RegisteredCount{Key: key, Count: n})
	}
	slices.SortFunc(out.Counts, func(a, b RegisteredCount) int { return a.Key.Compare(b.Key) })
	return out
}
