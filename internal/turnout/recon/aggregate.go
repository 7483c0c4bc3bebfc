package recon

import "slices"

// Aggregate counts matched events per bucket of the election dated
// electionDate. Buckets use the registered county, never the cast county;
// events without a registry row are left out of the numerator. Output is
// sorted by key.
func Aggregate(events []AttributedVoteEvent, electionDate string, electionYear int) []VotedCount {
	counts := make(map[BucketKey]int64)
	for _, ev := range events {
		if ev.Attributes == nil {
			continue
		}
		a := ev.Attributes
		key := BucketKey{
			ElectionDate:  electionDate,
			County:        a.RegisteredCounty,
			PartyCode:     a.PartyCode,
			RaceCode:      a.RaceCode,
			EthnicityCode: a.EthnicityCode,
			SexCode:       a.SexCode,
			AgeGroup:      AgeGroup(a.BirthYear, electionYear),
		}
		counts[key]++
	}

	out := make([]VotedCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, VotedCount{Key: key, Count: n})
	}
	slices.SortFunc(out, func(a, b VotedCount) int { return a.Key.Compare(b.Key) })
	return out
}
