package export

import (
	"context"
	"io"
	"path/filepath"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Dir writes the per-election QA files into one directory.
type Dir struct {
	Path string
}

// UnmatchedPath names the unmatched voter file of one election.
func (d Dir) UnmatchedPath(iso string) string {
	return filepath.Join(d.Path, "mismatched_ncids_"+iso+".csv")
}

// CountyMismatchPath names the county mismatch file of one election.
func (d Dir) CountyMismatchPath(iso string) string {
	return filepath.Join(d.Path, "county_mismatch_"+iso+".csv")
}

// QASummaryPath names the single-row QA summary of one election.
func (d Dir) QASummaryPath(iso string) string {
	return filepath.Join(d.Path, "qa_summary_"+iso+".csv")
}

// MissingDenominatorPath names the file of voted buckets with no census row.
func (d Dir) MissingDenominatorPath(iso string) string {
	return filepath.Join(d.Path, "missing_denominator_"+iso+".csv")
}

// QASummaryAllPath names the run-wide QA summary table.
func (d Dir) QASummaryAllPath() string {
	return filepath.Join(d.Path, "qa_summary_ALL.csv")
}

// ChecksAllPath names the run-wide reconciliation checks table.
func (d Dir) ChecksAllPath() string {
	return filepath.Join(d.Path, "qa_checks_ALL.csv")
}

// PutElection writes the diagnostic files of one election.
func (d Dir) PutElection(ctx context.Context, res recon.ElectionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	iso := res.Election.ISO
	files := []struct {
		path string
		fn   func(io.Writer) error
	}{
		{d.UnmatchedPath(iso), func(w io.Writer) error { return WriteUnmatched(w, res.Unmatched) }},
		{d.CountyMismatchPath(iso), func(w io.Writer) error { return WriteCountyMismatches(w, res.CountyMismatched) }},
		{d.QASummaryPath(iso), func(w io.Writer) error { return WriteQASummaries(w, []recon.QASummary{res.QA}) }},
		{d.MissingDenominatorPath(iso), func(w io.Writer) error { return WriteMissingDenominator(w, res.MissingDenominator) }},
	}
	for _, f := range files {
		if err := WriteFile(f.path, f.fn); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummaries writes the run-wide QA and checks tables.
func (d Dir) WriteSummaries(qa []recon.QASummary, checks []recon.Checks) error {
	if err := WriteFile(d.QASummaryAllPath(), func(w io.Writer) error { return WriteQASummaries(w, qa) }); err != nil {
		return err
	}
	return WriteFile(d.ChecksAllPath(), func(w io.Writer) error { return WriteChecks(w, checks) })
}
