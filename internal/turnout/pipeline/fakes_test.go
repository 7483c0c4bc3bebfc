package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/ingest"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// fakeCensus serves canned census tables keyed by election ISO date.
type fakeCensus struct {
	mu     sync.Mutex
	tables map[string]ingest.CensusTable
	errs   map[string]error
	calls  []string
}

func (f *fakeCensus) source() CensusSource {
	return func(_ context.Context, file election.CensusFile) (ingest.CensusTable, error) {
		f.mu.Lock()
		f.calls = append(f.calls, file.Election.ISO)
		f.mu.Unlock()
		if err := f.errs[file.Election.ISO]; err != nil {
			return ingest.CensusTable{}, err
		}
		table, ok := f.tables[file.Election.ISO]
		if !ok {
			return ingest.CensusTable{}, errors.New("no census")
		}
		return table, nil
	}
}

// recordingSink remembers the order elections were delivered in.
type recordingSink struct {
	dates []string
	err   error
}

func (s *recordingSink) PutElection(_ context.Context, res recon.ElectionResult) error {
	if s.err != nil {
		return s.err
	}
	s.dates = append(s.dates, res.Election.ISO)
	return nil
}
