package ingest

import (
	"io"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Vote log column positions.
const (
	voteColCounty = 1
	voteColLabel  = 3
	voteColID     = 10
)

// VoteLog holds vote events grouped by election label.
type VoteLog struct {
	ByLabel map[string][]recon.VoteEvent
	// Rows is the number of non-blank lines read.
	Rows int
	// Skipped counts header lines and rows missing a label or voter id.
	Skipped int
	// Ignored counts valid rows for elections nobody asked for.
	Ignored int
}

// Events returns the events of one election label.
func (v VoteLog) Events(label string) []recon.VoteEvent {
	return v.ByLabel[label]
}

// LoadVoteLog reads the vote-event log. When labels is non-nil only events
// for those election labels are kept.
func LoadVoteLog(r io.Reader, labels map[string]bool) (VoteLog, error) {
	out := VoteLog{ByLabel: make(map[string][]recon.VoteEvent)}
	rows, err := scan(r, func(rw row) error {
		label := rw.at(voteColLabel)
		id := rw.at(voteColID)
		if isHeader(label, "election_lbl") || isHeader(id, "ncid") {
			out.Skipped++
			return nil
		}
		if labels != nil && !labels[label] {
			out.Ignored++
			return nil
		}
		out.ByLabel[label] = append(out.ByLabel[label], recon.VoteEvent{
			ElectionLabel: label,
			VoterID:       id,
			CastCounty:    rw.upperAt(voteColCounty),
		})
		return nil
	})
	out.Rows = rows
	if err != nil {
		return VoteLog{}, err
	}
	return out, nil
}
