// Package recon reconciles vote events, voter attributes and the registration
// census of one election into turnout buckets.
//
// Every operation is a pure transformation over slices of records: nothing
// here touches files, databases or shared state, so a pass over one election
// can be tested (and run) in isolation from every other.
package recon

import "strings"

// Age group labels. They are compared as literal strings against the census
// file, so they must match its spelling exactly.
const (
	AgeInvalid = "Age < 18 Or Invalid Birth Dates"
	Age18To25  = "Age 18 - 25"
	Age26To40  = "Age 26 - 40"
	Age41To65  = "Age 41 - 65"
	AgeOver66  = "Age Over 66"
)

// VoteEvent is one cast ballot from the vote-event log.
type VoteEvent struct {
	ElectionLabel string
	VoterID       string
	CastCounty    string
}

// VoterAttributes is one registry row.
type VoterAttributes struct {
	VoterID          string
	RegisteredCounty string
	PartyCode        string
	RaceCode         string
	EthnicityCode    string
	SexCode          string
	BirthYear        string
}

// DedupedVoteEvent is the single surviving vote event of a voter.
type DedupedVoteEvent struct {
	VoterID    string
	CastCounty string
}

// AttributedVoteEvent is a deduplicated vote event with its registry row.
type AttributedVoteEvent struct {
	VoterID    string
	CastCounty string
	// Attributes is nil when the voter id has no registry entry.
	Attributes *VoterAttributes
}

// Matched reports whether the event joined to a registry row.
func (e AttributedVoteEvent) Matched() bool {
	return e.Attributes != nil
}

// RegisteredCounty returns the registry county, or false for a join mismatch.
func (e AttributedVoteEvent) RegisteredCounty() (string, bool) {
	if e.Attributes == nil {
		return "", false
	}
	return e.Attributes.RegisteredCounty, true
}

// BucketKey is the grouping key shared by numerator and denominator.
type BucketKey struct {
	ElectionDate  string
	County        string
	PartyCode     string
	RaceCode      string
	EthnicityCode string
	SexCode       string
	AgeGroup      string
}

// Compare orders keys field by field, in column order.
func (k BucketKey) Compare(o BucketKey) int {
	for _, pair := range [...][2]string{
		{k.ElectionDate, o.ElectionDate},
		{k.County, o.County},
		{k.PartyCode, o.PartyCode},
		{k.RaceCode, o.RaceCode},
		{k.EthnicityCode, o.EthnicityCode},
		{k.SexCode, o.SexCode},
		{k.AgeGroup, o.AgeGroup},
	} {
		if c := strings.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	return 0
}

// RegisteredCount is the census denominator of one bucket.
type RegisteredCount struct {
	Key   BucketKey
	Count int64
}

// VotedCount is the numerator of one bucket.
type VotedCount struct {
	Key   BucketKey
	Count int64
}

// TurnoutBucket is one output row.
type TurnoutBucket struct {
	Key        BucketKey
	Registered int64
	Voted      int64
	// Rate is nil when Registered is zero.
	Rate *float64
}

// QASummary is the per-election join quality row.
type QASummary struct {
	ElectionDate       string
	ElectionLabel      string
	TotalVoted         int64
	JoinMismatches     int64
	JoinMismatchRate   float64
	CountyMismatches   int64
	CountyMismatchRate float64
}

// UnmatchedVoter is a vote event whose voter id is missing from the registry.
type UnmatchedVoter struct {
	VoterID    string
	CastCounty string
}

// CountyMismatch is a matched vote event cast outside the registered county.
type CountyMismatch struct {
	VoterID          string
	CastCounty       string
	RegisteredCounty string
}
