package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

func bucketKey(county string) recon.BucketKey {
	return recon.BucketKey{
		ElectionDate:  "2025-11-04",
		County:        county,
		PartyCode:     "DEM",
		RaceCode:      "W",
		EthnicityCode: "NL",
		SexCode:       "F",
		AgeGroup:      recon.Age41To65,
	}
}

func TestWriteTurnoutNullRateIsEmpty(t *testing.T) {
	t.Parallel()

	rate := 0.25
	var buf bytes.Buffer
	require.NoError(t, WriteTurnout(&buf, []recon.TurnoutBucket{
		{Key: bucketKey("DURHAM"), Registered: 0, Voted: 2},
		{Key: bucketKey("WAKE"), Registered: 4, Voted: 1, Rate: &rate},
	}))

	assert.Equal(t,
		"election_date,county_desc,party_cd,race_code,ethnic_code,sex_code,age_group,registered_count,voted_count,turnout_rate\n"+
			"2025-11-04,DURHAM,DEM,W,NL,F,Age 41 - 65,0,2,\n"+
			"2025-11-04,WAKE,DEM,W,NL,F,Age 41 - 65,4,1,0.25\n",
		buf.String())
}

func TestWriteQASummaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteQASummaries(&buf, []recon.QASummary{{
		ElectionDate:       "2025-11-04",
		ElectionLabel:      "11/04/2025",
		TotalVoted:         10,
		JoinMismatches:     1,
		JoinMismatchRate:   0.1,
		CountyMismatches:   3,
		CountyMismatchRate: 1.0 / 3.0,
	}}))
	assert.Equal(t,
		"election_date,election_label,total_voted_ncids,join_mismatches_dropped,join_mismatch_rate,county_mismatches_kept,county_mismatch_rate\n"+
			"2025-11-04,11/04/2025,10,1,0.1,3,0.3333333333333333\n",
		buf.String())
}

func TestWriteChecks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteChecks(&buf, []recon.Checks{{
		ElectionDate:      "2025-11-04",
		VotedBuckets:      3,
		KeyMatches:        2,
		CensusRowsDropped: 4,
		Statewide:         recon.StatewideSummary{Voted: 5, Registered: 0},
	}}))
	assert.Equal(t,
		"election_date,voted_buckets,key_matches,voted_buckets_without_denominator,votes_without_denominator,"+
			"zero_registered_buckets,statewide_voted,statewide_registered,statewide_rate,census_rows_dropped,"+
			"registry_duplicates,rate_n,rate_mean,rate_median,rate_p10,rate_p90\n"+
			"2025-11-04,3,2,0,0,0,5,0,,4,0,0,0,0,0,0\n",
		buf.String())
}

func TestWriteDiagnostics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteUnmatched(&buf, []recon.UnmatchedVoter{{VoterID: "X9", CastCounty: "WAKE"}}))
	assert.Equal(t, "ncid,voted_county_desc\nX9,WAKE\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCountyMismatches(&buf, []recon.CountyMismatch{{VoterID: "A1", CastCounty: "DURHAM", RegisteredCounty: "WAKE"}}))
	assert.Equal(t, "ncid,voted_county_desc,reg_county_desc\nA1,DURHAM,WAKE\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMissingDenominator(&buf, []recon.VotedCount{{Key: bucketKey("CASWELL"), Count: 2}}))
	assert.Equal(t,
		"election_date,county_desc,party_cd,race_code,ethnic_code,sex_code,age_group,voted_count\n"+
			"2025-11-04,CASWELL,DEM,W,NL,F,Age 41 - 65,2\n",
		buf.String())
}

func TestDirPutElection(t *testing.T) {
	t.Parallel()

	dir := Dir{Path: filepath.Join(t.TempDir(), "qa")}
	res := recon.ElectionResult{
		Election:         election.Election{ISO: "2025-11-04", Native: "11/04/2025", Year: 2025},
		QA:               recon.QASummary{ElectionDate: "2025-11-04", ElectionLabel: "11/04/2025"},
		Unmatched:        []recon.UnmatchedVoter{{VoterID: "X9", CastCounty: "WAKE"}},
		CountyMismatched: []recon.CountyMismatch{{VoterID: "A1", CastCounty: "DURHAM", RegisteredCounty: "WAKE"}},
	}
	require.NoError(t, dir.PutElection(context.Background(), res))

	for _, name := range []string{
		"mismatched_ncids_2025-11-04.csv",
		"county_mismatch_2025-11-04.csv",
		"qa_summary_2025-11-04.csv",
		"missing_denominator_2025-11-04.csv",
	} {
		_, err := os.Stat(filepath.Join(dir.Path, name))
		assert.NoErrorf(t, err, "expected %s", name)
	}

	data, err := os.ReadFile(dir.UnmatchedPath("2025-11-04"))
	require.NoError(t, err)
	assert.Equal(t, "ncid,voted_county_desc\nX9,WAKE\n", string(data))

	require.NoError(t, dir.WriteSummaries([]recon.QASummary{res.QA}, []recon.Checks{{ElectionDate: "2025-11-04"}}))
	_, err = os.Stat(dir.QASummaryAllPath())
	assert.NoError(t, err)
	_, err = os.Stat(dir.ChecksAllPath())
	assert.NoError(t, err)
}

func TestDirPaths(t *testing.T) {
	t.Parallel()

	dir := Dir{Path: "qa"}
	assert.Equal(t, filepath.Join("qa", "mismatched_ncids_2025-11-04.csv"), dir.UnmatchedPath("2025-11-04"))
	assert.Equal(t, filepath.Join("qa", "county_mismatch_2025-11-04.csv"), dir.CountyMismatchPath("2025-11-04"))
	assert.Equal(t, filepath.Join("qa", "qa_summary_2025-11-04.csv"), dir.QASummaryPath("2025-11-04"))
	assert.Equal(t, filepath.Join("qa", "missing_denominator_2025-11-04.csv"), dir.MissingDenominatorPath("2025-11-04"))
	assert.Equal(t, filepath.Join("qa", "qa_summary_ALL.csv"), dir.QASummaryAllPath())
	assert.Equal(t, filepath.Join("qa", "qa_checks_ALL.csv"), dir.ChecksAllPath())
}

func TestDirPutElectionCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Dir{Path: t.TempDir()}.PutElection(ctx, recon.ElectionResult{})
	assert.ErrorIs(t, err, context.Canceled)
}
