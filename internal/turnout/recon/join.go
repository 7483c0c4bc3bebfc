package recon

// AttributeLookup resolves a voter id to its registry row.
type AttributeLookup interface {
	Lookup(voterID string) (VoterAttributes, bool)
}

// Registry is an in-memory attribute lookup keyed by voter id.
//
// The source registry does not guarantee unique ids. The first row seen for an
// id wins and later rows are counted as duplicates and ignored, so a join
// against the registry never fans out.
type Registry struct {
	byID       map[string]VoterAttributes
	duplicates int
}

// NewRegistry builds a registry from rows in file order.
func NewRegistry(rows ...VoterAttributes) *Registry {
	r := &Registry{byID: make(map[string]VoterAttributes, len(rows))}
	for _, row := range rows {
		r.Add(row)
	}
	return r
}

// Add inserts row unless its id is already present. It reports whether the
// row was kept.
func (r *Registry) Add(row VoterAttributes) bool {
	if r.byID == nil {
		r.byID = make(map[string]VoterAttributes)
	}
	if _, exists := r.byID[row.VoterID]; exists {
		r.duplicates++
		return false
	}
	r.byID[row.VoterID] = row
	return true
}

// Lookup implements AttributeLookup.
func (r *Registry) Lookup(voterID string) (VoterAttributes, bool) {
	if r == nil {
		return VoterAttributes{}, false
	}
	row, ok := r.byID[voterID]
	return row, ok
}

// Len returns the number of distinct voter ids.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}

// Duplicates returns how many rows were ignored because their id was taken.
func (r *Registry) Duplicates() int {
	if r == nil {
		return 0
	}
	return r.duplicates
}

// JoinQA holds the join diagnostics counts.
type JoinQA struct {
	TotalVoted       int64
	JoinMismatches   int64
	CountyMismatches int64
}

// Matched returns the number of events that found a registry row.
func (q JoinQA) Matched() int64 {
	return q.TotalVoted - q.JoinMismatches
}

// JoinMismatchRate is mismatches over total, or 0 for an empty election.
func (q JoinQA) JoinMismatchRate() float64 {
	if q.TotalVoted == 0 {
		return 0
	}
	return float64(q.JoinMismatches) / float64(q.TotalVoted)
}

// CountyMismatchRate is county mismatches over matched rows, or 0 when
// nothing matched.
func (q JoinQA) CountyMismatchRate() float64 {
	matched := q.Matched()
	if matched == 0 {
		return 0
	}
	return float64(q.CountyMismatches) / float64(matched)
}

// Summary renders the counts as the QA row of one election.
func (q JoinQA) Summary(electionDate, electionLabel string) QASummary {
	return QASummary{
		ElectionDate:       electionDate,
		ElectionLabel:      electionLabel,
		TotalVoted:         q.TotalVoted,
		JoinMismatches:     q.JoinMismatches,
		JoinMismatchRate:   q.JoinMismatchRate(),
		CountyMismatches:   q.CountyMismatches,
		CountyMismatchRate: q.CountyMismatchRate(),
	}
}

// JoinResult is the attributed events plus the rows operators review.
type JoinResult struct {
	Events           []AttributedVoteEvent
	QA               JoinQA
	Unmatched        []UnmatchedVoter
	CountyMismatched []CountyMismatch
}

// Join left-joins deduplicated events to attrs. Unmatched events stay in the
// output with nil attributes; they are listed in Unmatched and never in
// CountyMismatched.
func Join(events []DedupedVoteEvent, attrs AttributeLookup) JoinResult {
	res := JoinResult{
		Events: make([]AttributedVoteEvent, 0, len(events)),
	}
	for _, ev := range events {
		out := AttributedVoteEvent{VoterID: ev.VoterID, CastCounty: ev.CastCounty}
		res.QA.TotalVoted++

		row, ok := attrs.Lookup(ev.VoterID)
		if !ok {
			res.QA.JoinMismatches++
			res.Unmatched = append(res.Unmatched, UnmatchedVoter{
				VoterID:    ev.VoterID,
				CastCounty: ev.CastCounty,
			})
			res.Events = append(res.Events, out)
			continue
		}

		out.Attributes = &row
		if ev.CastCounty != row.RegisteredCounty {
			res.QA.CountyMismatches++
			res.CountyMismatched = append(res.CountyMismatched, CountyMismatch{
				VoterID:          ev.VoterID,
				CastCounty:       ev.CastCounty,
				RegisteredCounty: row.RegisteredCounty,
			})
		}
		res.Events = append(res.Events, out)
	}
	return res
}
