package recon

import (
	"errors"
	"fmt"

	"github.com/louisbranch/turnout/internal/turnout/election"
)

// ElectionInput is everything one reconciliation pass reads.
type ElectionInput struct {
	Election election.Election
	// Votes may hold other elections' events; they are filtered by label.
	Votes    []VoteEvent
	Registry AttributeLookup
	Census   []CensusRow
}

// Checks are the per-election reconciliation diagnostics.
type Checks struct {
	ElectionDate                   string
	VotedBuckets                   int
	KeyMatches                     int
	VotedBucketsWithoutDenominator int
	VotesWithoutDenominator        int64
	ZeroRegisteredBuckets          int
	Statewide                      StatewideSummary
	CensusRowsDropped              int
	RegistryDuplicates             int
	Distribution                   RateDistribution
}

// ElectionResult is the output of one pass.
type ElectionResult struct {
	Election           election.Election
	Buckets            []TurnoutBucket
	QA                 QASummary
	Checks             Checks
	Unmatched          []UnmatchedVoter
	CountyMismatched   []CountyMismatch
	MissingDenominator []VotedCount
}

// ReconcileElection runs dedup, join, bucketing, aggregation, denominator and
// reconciliation for a single election. It reads nothing but its input.
func ReconcileElection(in ElectionInput) (ElectionResult, error) {
	e := in.Election
	if e.ISO == "" || e.Native == "" {
		return ElectionResult{}, errors.New("reconcile: election is not set")
	}
	if in.Registry == nil {
		return ElectionResult{}, fmt.Errorf("reconcile %s: registry is required", e.ISO)
	}

	deduped := Dedup(FilterElection(in.Votes, e.Native))
	joined := Join(deduped, in.Registry)
	voted := Aggregate(joined.Events, e.ISO, e.Year)
	denom := BuildDenominator(in.Census, e.ISO, e.Native)
	rec := Reconcile(denom.Counts, voted)

	return ElectionResult{
		Election:         e,
		Buckets:          rec.Buckets,
		QA:               joined.QA.Summary(e.ISO, e.Native),
		Unmatched:        joined.Unmatched,
		CountyMismatched: joined.CountyMismatched,
		Checks: Checks{
			ElectionDate:                   e.ISO,
			VotedBuckets:                   len(voted),
			KeyMatches:                     rec.KeyMatches,
			VotedBucketsWithoutDenominator: len(rec.Orphans),
			VotesWithoutDenominator:        rec.OrphanVotes,
			ZeroRegisteredBuckets:          rec.ZeroRegistered,
			Statewide:                      Statewide(rec.Buckets),
			CensusRowsDropped:              denom.Dropped,
			Distribution:                   Distribution(rec.Buckets),
		},
		MissingDenominator: rec.Orphans,
	}, nil
}
