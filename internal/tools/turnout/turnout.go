// Package turnout is the batch command that reconciles the vote log, the
// voter registry and the registration census into turnout buckets.
package turnout

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	platformcmd "github.com/louisbranch/turnout/internal/platform/cmd"
	"github.com/louisbranch/turnout/internal/platform/timeouts"
	"github.com/louisbranch/turnout/internal/turnout/election"
	"github.com/louisbranch/turnout/internal/turnout/export"
	"github.com/louisbranch/turnout/internal/turnout/ingest"
	"github.com/louisbranch/turnout/internal/turnout/metrics"
	"github.com/louisbranch/turnout/internal/turnout/pipeline"
	"github.com/louisbranch/turnout/internal/turnout/recon"
	"github.com/louisbranch/turnout/internal/turnout/storage"
	"github.com/louisbranch/turnout/internal/turnout/storage/sqlite"
)

// ErrMissingInput marks a run that cannot start because an input is absent.
var ErrMissingInput = errors.New("missing required input")

// Config holds turnout command configuration. Env names carry the TURNOUT_
// prefix.
type Config struct {
	VoteLog          string        `env:"VOTE_LOG" envDefault:"data/raw/ncvhis/ncvhis_Statewide.txt"`
	Registry         string        `env:"REGISTRY" envDefault:"data/raw/ncvoter/ncvoter_Statewide.txt"`
	RegistryEncoding string        `env:"REGISTRY_ENCODING" envDefault:"utf-8"`
	CensusGlob       string        `env:"CENSUS_GLOB" envDefault:"data/raw/voter_stats/voter_stats_*.txt"`
	CensusLayout     string        `env:"CENSUS_LAYOUT" envDefault:"statewide"`
	Election         string        `env:"ELECTION"`
	OutCSV           string        `env:"OUT_CSV" envDefault:"data/derived/county_demographic_turnout_all.csv"`
	QADir            string        `env:"QA_DIR" envDefault:"data/derived/qa"`
	DBPath           string        `env:"DB_PATH" envDefault:"data/derived/turnout.sqlite"`
	MetricsTextfile  string        `env:"METRICS_TEXTFILE"`
	Workers          int           `env:"WORKERS" envDefault:"1"`
	ContinueOnError  bool          `env:"CONTINUE_ON_ERROR"`
	Timeout          time.Duration `env:"TIMEOUT"`
}

// ParseConfig loads env defaults and then parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Run
	}

	fs.StringVar(&cfg.VoteLog, "vote-log", cfg.VoteLog, "path to the tab-delimited vote-event log")
	fs.StringVar(&cfg.Registry, "registry", cfg.Registry, "path to the tab-delimited voter registry")
	fs.StringVar(&cfg.RegistryEncoding, "registry-encoding", cfg.RegistryEncoding, "registry text encoding (utf-8|cp1252)")
	fs.StringVar(&cfg.CensusGlob, "census-glob", cfg.CensusGlob, "glob of census files named ..._YYYYMMDD.txt")
	fs.StringVar(&cfg.CensusLayout, "census-layout", cfg.CensusLayout, "census column layout (statewide|precinct)")
	fs.StringVar(&cfg.Election, "election", cfg.Election, "only reconcile this election (MM/DD/YYYY)")
	fs.StringVar(&cfg.OutCSV, "out-csv", cfg.OutCSV, "combined turnout CSV output path")
	fs.StringVar(&cfg.QADir, "qa-dir", cfg.QADir, "directory for QA and diagnostic CSVs")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite accumulation store (empty disables)")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write Prometheus metrics to this textfile")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "elections reconciled concurrently")
	fs.BoolVar(&cfg.ContinueOnError, "continue-on-error", cfg.ContinueOnError, "skip a failing election instead of aborting")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one reconciliation. Progress goes to out; close failures go
// to errOut.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(out, "", 0)

	layout, err := ingest.ParseLayout(cfg.CensusLayout)
	if err != nil {
		return err
	}
	if cfg.Workers < 1 {
		return errors.New("-workers must be > 0")
	}
	if strings.TrimSpace(cfg.OutCSV) == "" {
		return errors.New("-out-csv is required")
	}
	if strings.TrimSpace(cfg.QADir) == "" {
		return errors.New("-qa-dir is required")
	}

	if err := requireFile("vote log", cfg.VoteLog); err != nil {
		return err
	}
	if err := requireFile("registry", cfg.Registry); err != nil {
		return err
	}
	discovery, err := discover(cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	skipped := append(append([]string(nil), discovery.Skipped...), discovery.Duplicates...)
	m.AddSkippedFiles(len(skipped))

	registry, regStats, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	logger.Printf("[INFO] loaded registry: %s voters from %s rows (%s duplicate ids ignored)",
		humanize.Comma(int64(regStats.Voters)), humanize.Comma(int64(regStats.Rows)), humanize.Comma(int64(regStats.Duplicates)))

	votes, err := loadVoteLog(cfg.VoteLog, discovery.Labels())
	if err != nil {
		return err
	}
	logger.Printf("[INFO] loaded vote log: %s rows (%s skipped, %s for other elections)",
		humanize.Comma(int64(votes.Rows)), humanize.Comma(int64(votes.Skipped)), humanize.Comma(int64(votes.Ignored)))

	qaDir := export.Dir{Path: cfg.QADir}
	sinks := []pipeline.Sink{qaDir}

	var (
		store *sqlite.Store
		runID string
	)
	if strings.TrimSpace(cfg.DBPath) != "" {
		store, runID, err = beginRun(ctx, cfg.DBPath, skipped)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				fmt.Fprintf(errOut, "Error: close store: %v\n", closeErr)
			}
		}()
		sinks = append(sinks, storeSink{store: store, runID: runID})
	}

	acc, err := pipeline.Run(ctx, pipeline.Input{
		Files:              discovery.Files,
		Votes:              votes,
		Registry:           registry,
		Census:             pipeline.FileCensus(layout),
		RegistryDuplicates: regStats.Duplicates,
	}, pipeline.Options{
		Workers:         cfg.Workers,
		ContinueOnError: cfg.ContinueOnError,
		Logger:          logger,
		Sinks:           sinks,
		Metrics:         m,
	})
	if err != nil {
		return err
	}
	if len(acc.Elections) == 0 {
		return fmt.Errorf("no election could be reconciled (%d failed)", len(acc.Failed))
	}

	if err := export.WriteFile(cfg.OutCSV, func(w io.Writer) error {
		return export.WriteTurnout(w, acc.Buckets)
	}); err != nil {
		return err
	}
	if err := qaDir.WriteSummaries(acc.QA, acc.Checks); err != nil {
		return err
	}
	if store != nil {
		if err := store.FinishRun(ctx, runID, time.Now().UTC(), len(acc.Elections)); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
	}
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		return err
	}

	for _, f := range acc.Failed {
		logger.Printf("[WARN] election %s from %s failed: %v", f.Election.ISO, f.File, f.Err)
	}
	logger.Printf("[OK] wrote %s (%s rows, %s votes across %d elections)",
		cfg.OutCSV, humanize.Comma(int64(len(acc.Buckets))), humanize.Comma(acc.Voted()), len(acc.Elections))
	logger.Printf("[OK] wrote %s", qaDir.QASummaryAllPath())
	logger.Printf("[OK] wrote %s", qaDir.ChecksAllPath())
	if store != nil {
		logger.Printf("[OK] stored run %s in %s", runID, cfg.DBPath)
	}
	return nil
}

func requireFile(name, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: %s path is empty", ErrMissingInput, name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMissingInput, name, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s %s is a directory", ErrMissingInput, name, path)
	}
	return nil
}

// discover resolves the census files to run and reports skipped names.
func discover(cfg Config, logger *log.Logger) (election.Discovery, error) {
	discovery, matched, err := election.Glob(cfg.CensusGlob)
	if err != nil {
		return election.Discovery{}, err
	}
	if matched == 0 {
		return election.Discovery{}, fmt.Errorf("%w: no census files found at %s; expected files like voter_stats_YYYYMMDD.txt",
			ErrMissingInput, cfg.CensusGlob)
	}
	for _, name := range discovery.Skipped {
		logger.Printf("[WARN] skipping unrecognized file name: %s", name)
	}
	for _, name := range discovery.Duplicates {
		logger.Printf("[WARN] skipping census file for an election already covered: %s", name)
	}
	if label := strings.TrimSpace(cfg.Election); label != "" {
		discovery, err = discovery.Only(label)
		if err != nil {
			return election.Discovery{}, err
		}
		if len(discovery.Files) == 0 {
			return election.Discovery{}, fmt.Errorf("%w: no census file for election %s", ErrMissingInput, label)
		}
	}
	if len(discovery.Files) == 0 {
		return election.Discovery{}, fmt.Errorf("%w: none of the %d census files at %s carries a YYYYMMDD date",
			ErrMissingInput, matched, cfg.CensusGlob)
	}
	return discovery, nil
}

func loadRegistry(cfg Config) (*recon.Registry, ingest.RegistryStats, error) {
	f, err := os.Open(cfg.Registry)
	if err != nil {
		return nil, ingest.RegistryStats{}, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	r, err := ingest.Decode(f, cfg.RegistryEncoding)
	if err != nil {
		return nil, ingest.RegistryStats{}, err
	}
	registry, stats, err := ingest.LoadRegistry(r)
	if err != nil {
		return nil, ingest.RegistryStats{}, fmt.Errorf("read registry: %w", err)
	}
	return registry, stats, nil
}

func loadVoteLog(path string, labels map[string]bool) (ingest.VoteLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.VoteLog{}, fmt.Errorf("open vote log: %w", err)
	}
	defer f.Close()

	votes, err := ingest.LoadVoteLog(f, labels)
	if err != nil {
		return ingest.VoteLog{}, fmt.Errorf("read vote log: %w", err)
	}
	return votes, nil
}

func beginRun(ctx context.Context, path string, skipped []string) (*sqlite.Store, string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create store dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("open store: %w", err)
	}
	runID := uuid.NewString()
	if err := store.BeginRun(ctx, storage.Run{
		ID:           runID,
		StartedAt:    time.Now().UTC(),
		SkippedFiles: skipped,
	}); err != nil {
		_ = store.Close()
		return nil, "", fmt.Errorf("begin run: %w", err)
	}
	return store, runID, nil
}

// storeSink adapts a result store to the pipeline for one run.
type storeSink struct {
	store storage.ResultStore
	runID string
}

func (s storeSink) PutElection(ctx context.Context, res recon.ElectionResult) error {
	return s.store.PutElection(ctx, s.runID, res)
}
