// Package runstore keeps a history of analysis runs in SQLite.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/coffersTech/nanotel/internal/engine"
)

var ErrNotFound = errors.New("run not found")

// Run is the persisted summary of one analysis.
type Run struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	Source          string    `json:"source"`
	Family          string    `json:"family"`
	TaxonomyVersion string    `json:"taxonomy_version"`
	Total           int       `json:"total"`
	Success         int       `json:"success"`
	Failure         int       `json:"failure"`
	Incomplete      int       `json:"incomplete"`
	Flagged         int       `json:"flagged"`
	MeanSeconds     *float64  `json:"mean_seconds"`
	Violation       string    `json:"violation,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FromSummary builds a run from a reporter summary.
func FromSummary(query, source, taxonomy string, s engine.Summary, violation string) *Run {
	r := &Run{
		Query:           query,
		Source:          source,
		Family:          s.Family.String(),
		TaxonomyVersion: taxonomy,
		Total:           s.Total,
		Success:         s.Success,
		Failure:         s.Failure,
		Incomplete:      s.Incomplete,
		Flagged:         s.Flagged,
		Violation:       violation,
	}
	if s.Mean != nil {
		m := s.Mean.Seconds()
		r.MeanSeconds = &m
	}
	return r
}

// Store is a SQLite run history.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			source TEXT NOT NULL,
			family TEXT NOT NULL,
			taxonomy_version TEXT NOT NULL,
			total INTEGER NOT NULL,
			success INTEGER NOT NULL,
			failure INTEGER NOT NULL,
			incomplete INTEGER NOT NULL,
			flagged INTEGER NOT NULL,
			mean_seconds REAL,
			violation TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts run, assigning an id and creation time when unset.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate run id: %w", err)
		}
		run.ID = id.String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO runs (id, query, source, family, taxonomy_version, total, success, failure,
		incomplete, flagged, mean_seconds, violation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Query, run.Source, run.Family, run.TaxonomyVersion,
		run.Total, run.Success, run.Failure, run.Incomplete, run.Flagged,
		run.MeanSeconds, run.Violation, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, query, source, family, taxonomy_version, total, success, failure,
	incomplete, flagged, mean_seconds, violation, created_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r         Run
		mean      sql.NullFloat64
		violation sql.NullString
	)
	err := row.Scan(&r.ID, &r.Query, &r.Source, &r.Family, &r.TaxonomyVersion,
		&r.Total, &r.Success, &r.Failure, &r.Incomplete, &r.Flagged,
		&mean, &violation, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if mean.Valid {
		m := mean.Float64
		r.MeanSeconds = &m
	}
	r.Violation = violation.String
	return &r, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs, newest first. A non-empty query restricts
// the list to runs of that query.
func (s *Store) List(ctx context.Context, query string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	stmt := selectRun
	args := []any{}
	if query != "" {
		stmt += ` WHERE query = ?`
		args = append(args, query)
	}
	stmt += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
