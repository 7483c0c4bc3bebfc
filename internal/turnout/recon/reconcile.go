package recon

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Reconciliation is the denominator-anchored join of one election.
type Reconciliation struct {
	// Buckets holds one row per denominator bucket, sorted by key.
	Buckets []TurnoutBucket
	// KeyMatches is the number of voted buckets that found a denominator.
	KeyMatches int
	// Orphans are voted buckets with no denominator, sorted by key.
	Orphans []VotedCount
	// OrphanVotes is the vote total carried by Orphans.
	OrphanVotes int64
	// ZeroRegistered counts buckets whose registered count is zero.
	ZeroRegistered int
}

// Reconcile joins voted counts onto denominator buckets. Every denominator
// bucket is kept and defaults to zero votes; voted buckets with no denominator
// are reported as orphans instead of being folded into the table.
func Reconcile(registered []RegisteredCount, voted []VotedCount) Reconciliation {
	votes := make(map[BucketKey]int64, len(voted))
	for _, v := range voted {
		votes[v.Key] += v.Count
	}

	var out Reconciliation
	out.Buckets = make([]TurnoutBucket, 0, len(registered))
	anchored := make(map[BucketKey]bool, len(registered))
	for _, r := range registered {
		anchored[r.Key] = true
		b := TurnoutBucket{Key: r.Key, Registered: r.Count, Voted: votes[r.Key]}
		if r.Count > 0 {
			rate := float64(b.Voted) / float64(r.Count)
			b.Rate = &rate
		} else {
			out.ZeroRegistered++
		}
		out.Buckets = append(out.Buckets, b)
	}

	for _, v := range voted {
		if anchored[v.Key] {
			out.KeyMatches++
			continue
		}
		out.Orphans = append(out.Orphans, v)
		out.OrphanVotes += v.Count
	}

	slices.SortFunc(out.Buckets, func(a, b TurnoutBucket) int { return a.Key.Compare(b.Key) })
	slices.SortFunc(out.Orphans, func(a, b VotedCount) int { return a.Key.Compare(b.Key) })
	return out
}

// StatewideSummary totals one election's buckets.
type StatewideSummary struct {
	Voted      int64
	Registered int64
	// Rate is nil when nothing is registered.
	Rate *float64
}

// Statewide sums buckets into a single summary row.
func Statewide(buckets []TurnoutBucket) StatewideSummary {
	var s StatewideSummary
	for _, b := range buckets {
		s.Voted += b.Voted
		s.Registered += b.Registered
	}
	if s.Registered > 0 {
		rate := float64(s.Voted) / float64(s.Registered)
		s.Rate = &rate
	}
	return s
}

// RateDistribution describes the spread of non-null bucket rates.
type RateDistribution struct {
	N      int
	Mean   float64
	Median float64
	P10    float64
	P90    float64
}

// Distribution summarises the non-null rates of buckets. Quantiles use the
// empirical CDF. A zero value is returned when no bucket has a rate.
func Distribution(buckets []TurnoutBucket) RateDistribution {
	rates := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if b.Rate != nil {
			rates = append(rates, *b.Rate)
		}
	}
	if len(rates) == 0 {
		return RateDistribution{}
	}
	slices.Sort(rates)
	return RateDistribution{
		N:      len(rates),
		Mean:   stat.Mean(rates, nil),
		Median: stat.Quantile(0.5, stat.Empirical, rates, nil),
		P10:    stat.Quantile(0.1, stat.Empirical, rates, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, rates, nil),
	}
}
