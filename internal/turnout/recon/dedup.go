package recon

import (
	"cmp"
	"slices"
)

// FilterElection keeps the events whose election label equals label.
func FilterElection(events []VoteEvent, label string) []VoteEvent {
	out := make([]VoteEvent, 0, len(events))
	for _, ev := range events {
		if ev.ElectionLabel == label {
			out = append(out, ev)
		}
	}
	return out
}

// Dedup collapses events to one row per voter id. Among a voter's rows the one
// with the smallest cast county wins; the rule is a reproducible tie-break,
// not a judgement about which county is correct. Output is ordered by voter id.
func Dedup(events []VoteEvent) []DedupedVoteEvent {
	best := make(map[string]string, len(events))
	for _, ev := range events {
		county, seen := best[ev.VoterID]
		if !seen || ev.CastCounty < county {
			best[ev.VoterID] = ev.CastCounty
		}
	}

	out := make([]DedupedVoteEvent, 0, len(best))
	for id, county := range best {
		out = append(out, DedupedVoteEvent{VoterID: id, CastCounty: county})
	}
	slices.SortFunc(out, func(a, b DedupedVoteEvent) int {
		return cmp.Compare(a.VoterID, b.VoterID)
	})
	return out
}
