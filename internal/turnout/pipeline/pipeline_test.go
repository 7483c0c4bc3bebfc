package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/ingest"
	"github.com/louisbranch/turnout/internal/turnout/metrics"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

func censusFile(t *testing.T, name string) election.CensusFile {
	t.Helper()
	d := election.Discover([]string{name})
	require.Len(t, d.Files, 1)
	return d.Files[0]
}

func censusRow(native, county, party, count string) recon.CensusRow {
	return recon.CensusRow{
		County:        county,
		ElectionDate:  native,
		StatType:      "voter",
		PartyCode:     party,
		RaceCode:      "W",
		EthnicityCode: "NL",
		SexCode:       "F",
		AgeGroup:      recon.Age41To65,
		TotalVoters:   count,
	}
}

func voter(id, county, party string) recon.VoterAttributes {
	return recon.VoterAttributes{
		VoterID:          id,
		RegisteredCounty: county,
		PartyCode:        party,
		RaceCode:         "W",
		EthnicityCode:    "NL",
		SexCode:          "F",
		BirthYear:        "1970",
	}
}

func twoElectionInput(t *testing.T, census *fakeCensus) Input {
	t.Helper()
	return Input{
		Files: []election.CensusFile{
			censusFile(t, "voter_stats_20241105.txt"),
			censusFile(t, "voter_stats_20251104.txt"),
		},
		Votes: ingest.VoteLog{ByLabel: map[string][]recon.VoteEvent{
			"11/05/2024": {
				{ElectionLabel: "11/05/2024", VoterID: "A1", CastCounty: "WAKE"},
				{ElectionLabel: "11/05/2024", VoterID: "B2", CastCounty: "ORANGE"},
			},
			"11/04/2025": {
				{ElectionLabel: "11/04/2025", VoterID: "A1", CastCounty: "DURHAM"},
				{ElectionLabel: "11/04/2025", VoterID: "A1", CastCounty: "WAKE"},
				{ElectionLabel: "11/04/2025", VoterID: "Z9", CastCounty: "WAKE"},
			},
		}},
		Registry:           recon.NewRegistry(voter("A1", "WAKE", "DEM"), voter("B2", "ORANGE", "REP")),
		Census:             census.source(),
		RegistryDuplicates: 2,
	}
}

func twoElectionCensus() *fakeCensus {
	return &fakeCensus{tables: map[string]ingest.CensusTable{
		"2024-11-05": {Rows: []recon.CensusRow{
			censusRow("11/05/2024", "WAKE", "DEM", "10"),
			censusRow("11/05/2024", "ORANGE", "REP", "5"),
		}},
		"2025-11-04": {Rows: []recon.CensusRow{
			censusRow("11/04/2025", "WAKE", "DEM", "8"),
			censusRow("11/04/2025", "ORANGE", "REP", "0"),
		}, Short: 3},
	}}
}

func TestRunFoldsElectionsInFileOrder(t *testing.T) {
	t.Parallel()

	census := twoElectionCensus()
	sink := &recordingSink{}
	m := metrics.New()
	var logs bytes.Buffer

	acc, err := Run(context.Background(), twoElectionInput(t, census), Options{
		Workers: 4,
		Logger:  log.New(&logs, "", 0),
		Sinks:   []Sink{sink},
		Metrics: m,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-11-05", "2025-11-04"}, sink.dates)
	require.Len(t, acc.QA, 2)
	assert.Equal(t, "2024-11-05", acc.QA[0].ElectionDate)
	assert.Equal(t, int64(2), acc.QA[0].TotalVoted)
	assert.Equal(t, int64(2), acc.QA[1].TotalVoted)
	assert.Equal(t, int64(1), acc.QA[1].JoinMismatches)
	assert.Equal(t, int64(1), acc.QA[1].CountyMismatches)
	assert.Empty(t, acc.Failed)

	require.Len(t, acc.Buckets, 4)
	for i := 1; i < len(acc.Buckets); i++ {
		assert.Negative(t, acc.Buckets[i-1].Key.Compare(acc.Buckets[i].Key))
	}
	assert.Equal(t, int64(3), acc.Voted())

	require.Len(t, acc.Checks, 2)
	assert.Equal(t, 3, acc.Checks[1].CensusRowsDropped)
	assert.Equal(t, 2, acc.Checks[1].RegistryDuplicates)
	assert.Equal(t, 1, acc.Checks[1].ZeroRegisteredBuckets)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Voted.WithLabelValues("2025-11-04")))
	assert.Contains(t, logs.String(), "[INFO] building election 2024-11-05 from voter_stats_20241105.txt")
	assert.Contains(t, logs.String(), "[CHECK] 2025-11-04")
}

func TestRunAbortsOnElectionError(t *testing.T) {
	t.Parallel()

	census := twoElectionCensus()
	census.errs = map[string]error{"2024-11-05": errors.New("truncated file")}
	sink := &recordingSink{}

	_, err := Run(context.Background(), twoElectionInput(t, census), Options{Sinks: []Sink{sink}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "election 2024-11-05")
	assert.Empty(t, sink.dates)
}

func TestRunContinueOnError(t *testing.T) {
	t.Parallel()

	census := twoElectionCensus()
	census.errs = map[string]error{"2024-11-05": errors.New("truncated file")}
	sink := &recordingSink{}
	var logs bytes.Buffer

	acc, err := Run(context.Background(), twoElectionInput(t, census), Options{
		ContinueOnError: true,
		Logger:          log.New(&logs, "", 0),
		Sinks:           []Sink{sink},
	})
	require.NoError(t, err)
	require.Len(t, acc.Failed, 1)
	assert.Equal(t, "2024-11-05", acc.Failed[0].Election.ISO)
	assert.Equal(t, "voter_stats_20241105.txt", acc.Failed[0].File)
	assert.Equal(t, []string{"2025-11-04"}, sink.dates)
	assert.Len(t, acc.QA, 1)
	assert.Contains(t, logs.String(), "[WARN] election 2024-11-05: truncated file")
}

func TestRunSinkErrorIsFatal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("disk full")}
	_, err := Run(context.Background(), twoElectionInput(t, twoElectionCensus()), Options{
		ContinueOnError: true,
		Sinks:           []Sink{sink},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunRequiresInputs(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Input{Census: twoElectionCensus().source()}, Options{})
	assert.Error(t, err)

	_, err = Run(context.Background(), Input{Registry: recon.NewRegistry()}, Options{})
	assert.Error(t, err)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	census := twoElectionCensus()
	in := twoElectionInput(t, census)
	in.Census = func(ctx context.Context, file election.CensusFile) (ingest.CensusTable, error) {
		return ingest.CensusTable{}, ctx.Err()
	}

	_, err := Run(ctx, in, Options{ContinueOnError: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDeadlineAbortsWithContinueOnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	in := twoElectionInput(t, twoElectionCensus())
	in.Census = func(ctx context.Context, file election.CensusFile) (ingest.CensusTable, error) {
		return ingest.CensusTable{}, ctx.Err()
	}
	sink := &recordingSink{}

	acc, err := Run(ctx, in, Options{ContinueOnError: true, Sinks: []Sink{sink}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, acc.Failed)
	assert.Empty(t, sink.dates)
}

func TestRunRejectsTwoFilesForOneElection(t *testing.T) {
	t.Parallel()

	census := twoElectionCensus()
	in := twoElectionInput(t, census)
	in.Files = []election.CensusFile{
		censusFile(t, "voter_stats_20251104.txt"),
		censusFile(t, "voter_stats_v2_20251104.txt"),
	}
	sink := &recordingSink{}

	_, err := Run(context.Background(), in, Options{Sinks: []Sink{sink}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "election 2025-11-04 has two census files")
	assert.Empty(t, census.calls)
	assert.Empty(t, sink.dates)
}

func TestSinkFunc(t *testing.T) {
	t.Parallel()

	var got string
	sink := SinkFunc(func(_ context.Context, res recon.ElectionResult) error {
		got = res.Election.ISO
		return nil
	})
	require.NoError(t, sink.PutElection(context.Background(), recon.ElectionResult{
		Election: election.Election{ISO: "2025-11-04"},
	}))
	assert.Equal(t, "2025-11-04", got)
}

func TestFileCensus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "voter_stats_20251104.txt")
	require.NoError(t, os.WriteFile(path, []byte("WAKE\t11/04/2025\tvoter\t\t\tDEM\tW\tNL\tF\tAge 41 - 65\t7\n"), 0o644))

	file := censusFile(t, path)
	table, err := FileCensus(ingest.LayoutStatewide)(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "7", table.Rows[0].TotalVoters)

	file.Path = filepath.Join(dir, "missing_20251104.txt")
	_, err = FileCensus(ingest.LayoutStatewide)(context.Background(), file)
	assert.Error(t, err)
}

func TestAccumulatorFold(t *testing.T) {
	t.Parallel()

	key := func(date, county string) recon.BucketKey {
		return recon.BucketKey{ElectionDate: date, County: county}
	}
	var acc Accumulator
	acc = acc.Add(recon.ElectionResult{
		Election: election.Election{ISO: "2025-11-04"},
		Buckets:  []recon.TurnoutBucket{{Key: key("2025-11-04", "WAKE"), Voted: 2}},
	})
	acc = acc.Add(recon.ElectionResult{
		Election: election.Election{ISO: "2024-11-05"},
		Buckets:  []recon.TurnoutBucket{{Key: key("2024-11-05", "WAKE"), Voted: 1}, {Key: key("2024-11-05", "ALAMANCE"), Voted: 5}},
	})
	acc = acc.Sorted()

	require.Len(t, acc.Buckets, 3)
	assert.Equal(t, key("2024-11-05", "ALAMANCE"), acc.Buckets[0].Key)
	assert.Equal(t, key("2025-11-04", "WAKE"), acc.Buckets[2].Key)
	assert.Equal(t, int64(8), acc.Voted())
	assert.Len(t, acc.Elections, 2)
}
