// Package pipeline runs the reconciliation across every discovered election
// and folds the results into one accumulator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/ingest"
	"github.com/louisbranch/turnout/internal/turnout/metrics"
	"github.com/louisbranch/turnout/internal/turnout/recon"
)

const tracerName = "github.com/louisbranch/turnout/internal/turnout/pipeline"

// Sink receives each completed election. Calls are serialized and follow
// file order.
type Sink interface {
	PutElection(ctx context.Context, res recon.ElectionResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res recon.ElectionResult) error

// PutElection implements Sink.
func (f SinkFunc) PutElection(ctx context.Context, res recon.ElectionResult) error {
	return f(ctx, res)
}

// CensusSource loads the census table of one file.
type CensusSource func(ctx context.Context, file election.CensusFile) (ingest.CensusTable, error)

// FileCensus reads census files from disk with a fixed layout.
func FileCensus(layout ingest.Layout) CensusSource {
	return func(ctx context.Context, file election.CensusFile) (ingest.CensusTable, error) {
		if err := ctx.Err(); err != nil {
			return ingest.CensusTable{}, err
		}
		f, err := os.Open(file.Path)
		if err != nil {
			return ingest.CensusTable{}, fmt.Errorf("open census: %w", err)
		}
		defer f.Close()
		table, err := ingest.ReadCensus(f, layout)
		if err != nil {
			return ingest.CensusTable{}, fmt.Errorf("read census %s: %w", filepath.Base(file.Path), err)
		}
		return table, nil
	}
}

// Input is the shared, read-only data of a run.
type Input struct {
	Files    []election.CensusFile
	Votes    ingest.VoteLog
	Registry recon.AttributeLookup
	Census   CensusSource
	// RegistryDuplicates is copied into every election's checks.
	RegistryDuplicates int
}

// Options tune a run.
type Options struct {
	// Workers bounds concurrent election passes. Values below one mean one.
	Workers int
	// ContinueOnError records a failed election and keeps going instead of
	// aborting the run.
	ContinueOnError bool
	Logger          *log.Logger
	Sinks           []Sink
	Metrics         *metrics.Metrics
}

type slot struct {
	res recon.ElectionResult
	err error
}

// Run reconciles every election of in. Passes run concurrently; results are
// handed to sinks and folded in file order once every pass has finished, and
// the returned accumulator is sorted.
func Run(ctx context.Context, in Input, opts Options) (Accumulator, error) {
	if in.Registry == nil {
		return Accumulator{}, errors.New("registry is required")
	}
	if in.Census == nil {
		return Accumulator{}, errors.New("census source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	seen := make(map[string]string, len(in.Files))
	for _, file := range in.Files {
		if prev, ok := seen[file.Election.ISO]; ok {
			return Accumulator{}, fmt.Errorf("election %s has two census files: %s and %s",
				file.Election.ISO, filepath.Base(prev), filepath.Base(file.Path))
		}
		seen[file.Election.ISO] = file.Path
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	slots := make([]slot, len(in.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range in.Files {
		g.Go(func() error {
			res, err := runElection(gctx, in, file, logger, opts.Metrics)
			if err != nil {
				err = fmt.Errorf("election %s: %w", file.Election.ISO, err)
				if !opts.ContinueOnError || ctx.Err() != nil ||
					errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
			}
			slots[i] = slot{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Accumulator{}, err
	}

	var acc Accumulator
	for i, s := range slots {
		file := in.Files[i]
		if s.err != nil {
			logger.Printf("[WARN] %v; continuing", s.err)
			acc = acc.Fail(Failure{Election: file.Election, File: filepath.Base(file.Path), Err: s.err})
			continue
		}
		for _, sink := range opts.Sinks {
			if err := sink.PutElection(ctx, s.res); err != nil {
				return Accumulator{}, fmt.Errorf("store election %s: %w", file.Election.ISO, err)
			}
		}
		opts.Metrics.ObserveElection(s.res)
		logChecks(logger, s.res)
		acc = acc.Add(s.res)
	}
	return acc.Sorted(), nil
}

func runElection(ctx context.Context, in Input, file election.CensusFile, logger *log.Logger, m *metrics.Metrics) (res recon.ElectionResult, err error) {
	e := file.Election
	ctx, span := otel.Tracer(tracerName).Start(ctx, "turnout.election",
		trace.WithAttributes(
			attribute.String("election.date", e.ISO),
			attribute.String("census.file", filepath.Base(file.Path)),
		),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int64("turnout.voted", res.QA.TotalVoted),
				attribute.Int("turnout.buckets", len(res.Buckets)),
			)
		}
		span.End()
		m.ObserveElectionDuration(time.Since(start))
	}()

	logger.Printf("[INFO] building election %s from %s", e.ISO, filepath.Base(file.Path))

	table, err := in.Census(ctx, file)
	if err != nil {
		return recon.ElectionResult{}, err
	}
	res, err = recon.ReconcileElection(recon.ElectionInput{
		Election: e,
		Votes:    in.Votes.Events(e.Native),
		Registry: in.Registry,
		Census:   table.Rows,
	})
	if err != nil {
		return recon.ElectionResult{}, err
	}
	res.Checks.CensusRowsDropped += table.Short
	res.Checks.RegistryDuplicates = in.RegistryDuplicates
	return res, nil
}

func logChecks(logger *log.Logger, res recon.ElectionResult) {
	c := res.Checks
	qa := res.QA
	logger.Printf("[CHECK] %s voted=%s join_mismatches=%s (%.4f) county_mismatches=%s (%.4f)",
		c.ElectionDate,
		humanize.Comma(qa.TotalVoted),
		humanize.Comma(qa.JoinMismatches), qa.JoinMismatchRate,
		humanize.Comma(qa.CountyMismatches), qa.CountyMismatchRate,
	)
	logger.Printf("[CHECK] %s key matches %d of %d voted buckets; %d buckets (%s votes) without denominator",
		c.ElectionDate, c.KeyMatches, c.VotedBuckets,
		c.VotedBucketsWithoutDenominator, humanize.Comma(c.VotesWithoutDenominator),
	)
	rate := "n/a"
	if c.Statewide.Rate != nil {
		rate = fmt.Sprintf("%.4f", *c.Statewide.Rate)
	}
	logger.Printf("[CHECK] %s statewide voted=%s registered=%s rate=%s zero_registered_buckets=%d census_rows_dropped=%d",
		c.ElectionDate,
		humanize.Comma(c.Statewide.Voted), humanize.Comma(c.Statewide.Registered), rate,
		c.ZeroRegisteredBuckets, c.CensusRowsDropped,
	)
}
