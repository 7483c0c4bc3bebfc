package pipeline

import (
	"slices"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Failure is an election that was skipped after an error.
type Failure struct {
	Election election.Election
	File     string
	Err      error
}

// Accumulator is the run-wide result folded over per-election results.
type Accumulator struct {
	Elections []election.Election
	Buckets   []recon.TurnoutBucket
	QA        []recon.QASummary
	Checks    []recon.Checks
	Failed    []Failure
}

// Add folds one election result into the accumulator.
func (a Accumulator) Add(res recon.ElectionResult) Accumulator {
	a.Elections = append(a.Elections, res.Election)
	a.Buckets = append(a.Buckets, res.Buckets...)
	a.QA = append(a.QA, res.QA)
	a.Checks = append(a.Checks, res.Checks)
	return a
}

// Fail records a skipped election.
func (a Accumulator) Fail(f Failure) Accumulator {
	a.Failed = append(a.Failed, f)
	return a
}

// Sorted orders buckets by the full key. It must run once every election has
// been added.
func (a Accumulator) Sorted() Accumulator {
	slices.SortStableFunc(a.Buckets, func(x, y recon.TurnoutBucket) int { return x.Key.Compare(y.Key) })
	return a
}

// Voted sums voted counts across every bucket.
func (a Accumulator) Voted() int64 {
	var n int64
	for _, b := range a.Buckets {
		n += b.Voted
	}
	return n
}
