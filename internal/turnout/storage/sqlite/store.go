// Package sqlite provides a SQLite-backed turnout storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/turnout/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/turnout/internal/platform/timeouts"
	"github.com/louisbranch/turnout/internal/turnout/recon"
	"github.com/louisbranch/turnout/internal/turnout/storage"
	"github.com/louisbranch/turnout/internal/turnout/storage/sqlite/migrations"
)

var _ storage.Store = (*Store)(nil)

// Store persists turnout runs and results in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite turnout store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		filepath.Clean(path),
		timeouts.SQLiteBusy.Milliseconds(),
	)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	return nil
}

// BeginRun inserts a run record.
func (s *Store) BeginRun(ctx context.Context, run storage.Run) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("run id is required")
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, elections, skipped_files) VALUES (?, ?, 0, ?)`,
		id,
		toMillis(startedAt),
		strings.Join(run.SkippedFiles, "\n"),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stamps a run as complete.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, elections int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, elections = ? WHERE id = ?`,
		toMillis(finishedAt),
		elections,
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (storage.Run, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Run{}, err
	}

	var (
		run        storage.Run
		startedAt  int64
		finishedAt sql.NullInt64
		skipped    string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, elections, skipped_files FROM runs WHERE id = ?`,
		strings.TrimSpace(id),
	).Scan(&run.ID, &startedAt, &finishedAt, &run.Elections, &skipped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, storage.ErrNotFound
		}
		return storage.Run{}, fmt.Errorf("get run: %w", err)
	}

	run.StartedAt = fromMillis(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = fromMillis(finishedAt.Int64)
	}
	if skipped != "" {
		run.SkippedFiles = strings.Split(skipped, "\n")
	}
	return run, nil
}

// PutElection replaces every stored row of one election in a transaction.
func (s *Store) PutElection(ctx context.Context, runID string, res recon.ElectionResult) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	date := res.Election.ISO
	if date == "" {
		return errors.New("election date is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin election %s: %w", date, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"turnout_buckets", "qa_summaries", "qa_checks", "unmatched_voters", "county_mismatches", "missing_denominator"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE election_date = ?", date); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, date, err)
		}
	}

	if err := putBuckets(ctx, tx, runID, res.Buckets); err != nil {
		return fmt.Errorf("store buckets for %s: %w", date, err)
	}
	if err := putSummary(ctx, tx, runID, res.QA); err != nil {
		return fmt.Errorf("store qa summary for %s: %w", date, err)
	}
	if err := putChecks(ctx, tx, runID, res.Checks); err != nil {
		return fmt.Errorf("store checks for %s: %w", date, err)
	}
	if err := putDiagnostics(ctx, tx, date, res); err != nil {
		return fmt.Errorf("store diagnostics for %s: %w", date, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit election %s: %w", date, err)
	}
	return nil
}

func putBuckets(ctx context.Context, tx *sql.Tx, runID string, buckets []recon.TurnoutBucket) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO turnout_buckets (
		   election_date, county_desc, party_cd, race_code, ethnic_code, sex_code, age_group,
		   registered_count, voted_count, turnout_rate, run_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range buckets {
		var rate sql.NullFloat64
		if b.Rate != nil {
			rate = sql.NullFloat64{Float64: *b.Rate, Valid: true}
		}
		k := b.Key
		if _, err := stmt.ExecContext(ctx,
			k.ElectionDate, k.County, k.PartyCode, k.RaceCode, k.EthnicityCode, k.SexCode, k.AgeGroup,
			b.Registered, b.Voted, rate, runID,
		); err != nil {
			return err
		}
	}
	return nil
}

func putSummary(ctx context.Context, tx *sql.Tx, runID string, qa recon.QASummary) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO qa_summaries (
		   election_date, election_label, total_voted_ncids, join_mismatches_dropped,
		   join_mismatch_rate, county_mismatches_kept, county_mismatch_rate, run_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		qa.ElectionDate, qa.ElectionLabel, qa.TotalVoted, qa.JoinMismatches,
		qa.JoinMismatchRate, qa.CountyMismatches, qa.CountyMismatchRate, runID,
	)
	return err
}

func putChecks(ctx context.Context, tx *sql.Tx, runID string, c recon.Checks) error {
	var rate sql.NullFloat64
	if c.Statewide.Rate != nil {
		rate = sql.NullFloat64{Float64: *c.Statewide.Rate, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO qa_checks (
		   election_date, voted_buckets, key_matches, voted_buckets_without_denominator,
		   votes_without_denominator, zero_registered_buckets, statewide_voted,
		   statewide_registered, statewide_rate, census_rows_dropped, registry_duplicates,
		   rate_n, rate_mean, rate_median, rate_p10, rate_p90, run_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ElectionDate, c.VotedBuckets, c.KeyMatches, c.VotedBucketsWithoutDenominator,
		c.VotesWithoutDenominator, c.ZeroRegisteredBuckets, c.Statewide.Voted,
		c.Statewide.Registered, rate, c.CensusRowsDropped, c.RegistryDuplicates,
		c.Distribution.N, c.Distribution.Mean, c.Distribution.Median,
		c.Distribution.P10, c.Distribution.P90, runID,
	)
	return err
}

func putDiagnostics(ctx context.Context, tx *sql.Tx, date string, res recon.ElectionResult) error {
	for _, u := range res.Unmatched {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unmatched_voters (election_date, ncid, voted_county_desc) VALUES (?, ?, ?)`,
			date, u.VoterID, u.CastCounty,
		); err != nil {
			return err
		}
	}
	for _, m := range res.CountyMismatched {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO county_mismatches (election_date, ncid, voted_county_desc, reg_county_desc) VALUES (?, ?, ?, ?)`,
			date, m.VoterID, m.CastCounty, m.RegisteredCounty,
		); err != nil {
			return err
		}
	}
	for _, v := range res.MissingDenominator {
		k := v.Key
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO missing_denominator (
			   election_date, county_desc, party_cd, race_code, ethnic_code, sex_code, age_group, voted_count
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			date, k.County, k.PartyCode, k.RaceCode, k.EthnicityCode, k.SexCode, k.AgeGroup, v.Count,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListTurnoutBuckets returns the buckets of one election sorted by key. An
// empty electionDate lists every election.
func (s *Store) ListTurnoutBuckets(ctx context.Context, electionDate string) ([]recon.TurnoutBucket, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `SELECT election_date, county_desc, party_cd, race_code, ethnic_code, sex_code, age_group,
	                 registered_count, voted_count, turnout_rate
	            FROM turnout_buckets`
	var args []any
	if date := strings.TrimSpace(electionDate); date != "" {
		query += ` WHERE election_date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY election_date, county_desc, party_cd, race_code, ethnic_code, sex_code, age_group`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turnout buckets: %w", err)
	}
	defer rows.Close()

	var out []recon.TurnoutBucket
	for rows.Next() {
		var (
			b    recon.TurnoutBucket
			rate sql.NullFloat64
		)
		k := &b.Key
		if err := rows.Scan(
			&k.ElectionDate, &k.County, &k.PartyCode, &k.RaceCode, &k.EthnicityCode, &k.SexCode, &k.AgeGroup,
			&b.Registered, &b.Voted, &rate,
		); err != nil {
			return nil, fmt.Errorf("scan turnout bucket: %w", err)
		}
		if rate.Valid {
			v := rate.Float64
			b.Rate = &v
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list turnout buckets: %w", err)
	}
	return out, nil
}

// ListQASummaries returns every stored QA row ordered by election date.
func (s *Store) ListQASummaries(ctx context.Context) ([]recon.QASummary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT election_date, election_label, total_voted_ncids,
	        join_mismatches_dropped, join_mismatch_rate, county_mismatches_kept, county_mismatch_rate
	   FROM qa_summaries
	  ORDER BY election_date`)
	if err != nil {
		return nil, fmt.Errorf("list qa summaries: %w", err)
	}
	defer rows.Close()

	var out []recon.QASummary
	for rows.Next() {
		var qa recon.QASummary
		if err := rows.Scan(
			&qa.ElectionDate, &qa.ElectionLabel, &qa.TotalVoted,
			&qa.JoinMismatches, &qa.JoinMismatchRate, &qa.CountyMismatches, &qa.CountyMismatchRate,
		); err != nil {
			return nil, fmt.Errorf("scan qa summary: %w", err)
		}
		out = append(out, qa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list qa summaries: %w", err)
	}
	return out, nil
}

// GetChecks returns the reconciliation checks of one election.
func (s *Store) GetChecks(ctx context.Context, electionDate string) (recon.Checks, error) {
	if err := s.ready(ctx); err != nil {
		return recon.Checks{}, err
	}

	var (
		c    recon.Checks
		rate sql.NullFloat64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT election_date, voted_buckets, key_matches,
	        voted_buckets_without_denominator, votes_without_denominator, zero_registered_buckets,
	        statewide_voted, statewide_registered, statewide_rate, census_rows_dropped,
	        registry_duplicates, rate_n, rate_mean, rate_median, rate_p10, rate_p90
	   FROM qa_checks
	  WHERE election_date = ?`,
		strings.TrimSpace(electionDate),
	).Scan(
		&c.ElectionDate, &c.VotedBuckets, &c.KeyMatches,
		&c.VotedBucketsWithoutDenominator, &c.VotesWithoutDenominator, &c.ZeroRegisteredBuckets,
		&c.Statewide.Voted, &c.Statewide.Registered, &rate, &c.CensusRowsDropped,
		&c.RegistryDuplicates, &c.Distribution.N, &c.Distribution.Mean, &c.Distribution.Median,
		&c.Distribution.P10, &c.Distribution.P90,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return recon.Checks{}, storage.ErrNotFound
		}
		return recon.Checks{}, fmt.Errorf("get checks: %w", err)
	}
	if rate.Valid {
		v := rate.Float64
		c.Statewide.Rate = &v
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
