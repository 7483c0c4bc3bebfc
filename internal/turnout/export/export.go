// Package export writes reconciliation results as CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Column headers of the written files.
var (
	TurnoutHeader = []string{
		"election_date", "county_desc", "party_cd", "race_code", "ethnic_code", "sex_code",
		"age_group", "registered_count", "voted_count", "turnout_rate",
	}
	QASummaryHeader = []string{
		"election_date", "election_label", "total_voted_ncids", "join_mismatches_dropped",
		"join_mismatch_rate", "county_mismatches_kept", "county_mismatch_rate",
	}
	ChecksHeader = []string{
		"election_date", "voted_buckets", "key_matches", "voted_buckets_without_denominator",
		"votes_without_denominator", "zero_registered_buckets", "statewide_voted",
		"statewide_registered", "statewide_rate", "census_rows_dropped", "registry_duplicates",
		"rate_n", "rate_mean", "rate_median", "rate_p10", "rate_p90",
	}
	UnmatchedHeader          = []string{"ncid", "voted_county_desc"}
	CountyMismatchHeader     = []string{"ncid", "voted_county_desc", "reg_county_desc"}
	MissingDenominatorHeader = []string{
		"election_date", "county_desc", "party_cd", "race_code", "ethnic_code", "sex_code",
		"age_group", "voted_count",
	}
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatRate renders a nullable rate; null is an empty cell.
func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func keyFields(k recon.BucketKey) []string {
	return []string{k.ElectionDate, k.County, k.PartyCode, k.RaceCode, k.EthnicityCode, k.SexCode, k.AgeGroup}
}

func write(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTurnout writes the combined turnout table in the given order.
func WriteTurnout(w io.Writer, buckets []recon.TurnoutBucket) error {
	return write(w, TurnoutHeader, len(buckets), func(i int) []string {
		b := buckets[i]
		return append(keyFields(b.Key), formatInt(b.Registered), formatInt(b.Voted), formatRate(b.Rate))
	})
}

// WriteQASummaries writes one row per election.
func WriteQASummaries(w io.Writer, rows []recon.QASummary) error {
	return write(w, QASummaryHeader, len(rows), func(i int) []string {
		q := rows[i]
		return []string{
			q.ElectionDate, q.ElectionLabel, formatInt(q.TotalVoted), formatInt(q.JoinMismatches),
			formatFloat(q.JoinMismatchRate), formatInt(q.CountyMismatches), formatFloat(q.CountyMismatchRate),
		}
	})
}

// WriteChecks writes the reconciliation checks, one row per election.
func WriteChecks(w io.Writer, rows []recon.Checks) error {
	return write(w, ChecksHeader, len(rows), func(i int) []string {
		c := rows[i]
		return []string{
			c.ElectionDate,
			strconv.Itoa(c.VotedBuckets),
			strconv.Itoa(c.KeyMatches),
			strconv.Itoa(c.VotedBucketsWithoutDenominator),
			formatInt(c.VotesWithoutDenominator),
			strconv.Itoa(c.ZeroRegisteredBuckets),
			formatInt(c.Statewide.Voted),
			formatInt(c.Statewide.Registered),
			formatRate(c.Statewide.Rate),
			strconv.Itoa(c.CensusRowsDropped),
			strconv.Itoa(c.RegistryDuplicates),
			strconv.Itoa(c.Distribution.N),
			formatFloat(c.Distribution.Mean),
			formatFloat(c.Distribution.Median),
			formatFloat(c.Distribution.P10),
			formatFloat(c.Distribution.P90),
		}
	})
}

// WriteUnmatched writes vote events with no registry row.
func WriteUnmatched(w io.Writer, rows []recon.UnmatchedVoter) error {
	return write(w, UnmatchedHeader, len(rows), func(i int) []string {
		return []string{rows[i].VoterID, rows[i].CastCounty}
	})
}

// WriteCountyMismatches writes matched events cast outside their county.
func WriteCountyMismatches(w io.Writer, rows []recon.CountyMismatch) error {
	return write(w, CountyMismatchHeader, len(rows), func(i int) []string {
		return []string{rows[i].VoterID, rows[i].CastCounty, rows[i].RegisteredCounty}
	})
}

// WriteMissingDenominator writes voted buckets absent from the census.
func WriteMissingDenominator(w io.Writer, rows []recon.VotedCount) error {
	return write(w, MissingDenominatorHeader, len(rows), func(i int) []string {
		return append(keyFields(rows[i].Key), formatInt(rows[i].Count))
	})
}

// WriteFile creates path, including parent directories, and fills it with fn.
func WriteFile(path string, fn func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
