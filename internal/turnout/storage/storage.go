// Package storage defines persistence contracts for reconciliation runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a run id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// Run is one invocation of the reconciliation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	// Elections is the number of elections stored by the run.
	Elections int
	// SkippedFiles lists census files ignored for their name.
	SkippedFiles []string
}

// Finished reports whether the run completed.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// RunStore records run bookkeeping.
type RunStore interface {
	BeginRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, elections int) error
	GetRun(ctx context.Context, id string) (Run, error)
}

// ResultStore persists per-election results. PutElection replaces whatever
// was stored for the same election date.
type ResultStore interface {
	PutElection(ctx context.Context, runID string, res recon.ElectionResult) error
	ListTurnoutBuckets(ctx context.Context, electionDate string) ([]recon.TurnoutBucket, error)
	ListQASummaries(ctx context.Context) ([]recon.QASummary, error)
	GetChecks(ctx context.Context, electionDate string) (recon.Checks, error)
}

// Store is the full persistence surface of a run.
type Store interface {
	RunStore
	ResultStore
	Close() error
}
