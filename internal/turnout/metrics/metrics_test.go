package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

func sampleResult() recon.ElectionResult {
	return recon.ElectionResult{
		Election: election.Election{ISO: "2025-11-04", Native: "11/04/2025", Year: 2025},
		QA:       recon.QASummary{TotalVoted: 120, JoinMismatches: 3, CountyMismatches: 7},
		Checks: recon.Checks{
			ZeroRegisteredBuckets:   2,
			VotesWithoutDenominator: 5,
			Statewide:               recon.StatewideSummary{Registered: 400, Voted: 110},
		},
	}
}

func TestObserveElection(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveElection(sampleResult())
	m.AddSkippedFiles(2)
	m.AddSkippedFiles(0)
	m.ObserveElectionDuration(time.Second)

	assert.Equal(t, 120.0, testutil.ToFloat64(m.Voted.WithLabelValues("2025-11-04")))
	assert.Equal(t, 400.0, testutil.ToFloat64(m.Registered.WithLabelValues("2025-11-04")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JoinMismatches.WithLabelValues("2025-11-04")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.CountyMismatches.WithLabelValues("2025-11-04")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ZeroRegisteredBuckets.WithLabelValues("2025-11-04")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.VotesWithoutDenominator.WithLabelValues("2025-11-04")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkippedFiles))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ElectionDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveElection(sampleResult())
	m.AddSkippedFiles(1)
	m.ObserveElectionDuration(time.Second)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveElection(sampleResult())
	path := filepath.Join(t.TempDir(), "turnout.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `turnout_voted_total{election_date="2025-11-04"} 120`)
	assert.Contains(t, string(data), "turnout_skipped_files_total 0")

	assert.NoError(t, m.WriteTextfile(""))
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	assert.NotSame(t, a.Registry(), b.Registry())
}
