// Package ledger keeps a SQLite history of conversion runs.
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/mattjoyce/jenkins2gha/internal/convert"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// Run is one recorded conversion.
type Run struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	InputHash   string    `json:"input_hash"`
	Fingerprint string    `json:"fingerprint"`
	Workflow    string    `json:"workflow"`
	Stages      int       `json:"stages"`
	Jobs        int       `json:"jobs"`
	Manual      int       `json:"manual_items"`
	Diagnostics int       `json:"diagnostics"`
	Confidence  string    `json:"confidence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store records and lists runs.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger database at path. ":memory:"
// opens a private in-memory ledger.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if path != ":memory:" {
		if err := checkLocalFilesystem(path, filesystemType); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversion_runs (
  id           TEXT PRIMARY KEY,
  source       TEXT NOT NULL,
  input_hash   TEXT NOT NULL,
  fingerprint  TEXT NOT NULL,
  workflow     TEXT NOT NULL,
  stages       INTEGER NOT NULL,
  jobs         INTEGER NOT NULL,
  manual_items INTEGER NOT NULL,
  diagnostics  INTEGER NOT NULL,
  confidence   TEXT,
  created_at   TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS conversion_runs_created_at_idx ON conversion_runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS conversion_runs_input_hash_idx ON conversion_runs(input_hash);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap ledger: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// HashInput returns the blake3 digest of a Jenkinsfile.
func HashInput(text string) string {
	sum := blake3.Sum256([]byte(text))
	return "blake3:" + hex.EncodeToString(sum[:])
}

// NewRun summarises a conversion of text read from source.
func NewRun(source, text string, res *convert.Result, confidence string) Run {
	manual := len(res.PostManual)
	for _, st := range res.Stages {
		manual += len(st.ManualConversionNeeded)
	}
	return Run{
		Source:      source,
		InputHash:   HashInput(text),
		Fingerprint: res.Fingerprint,
		Workflow:    res.Workflow.Name,
		Stages:      len(res.Stages),
		Jobs:        len(res.Workflow.Jobs),
		Manual:      manual,
		Diagnostics: len(res.Diagnostics),
		Confidence:  confidence,
	}
}

// Record stores run with a fresh id and timestamp and returns it.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.NewString()
	run.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversion_runs(id, source, input_hash, fingerprint, workflow, stages, jobs, manual_items, diagnostics, confidence, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, run.ID, run.Source, run.InputHash, run.Fingerprint, run.Workflow, run.Stages, run.Jobs, run.Manual, run.Diagnostics,
		nullable(run.Confidence), run.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, input_hash, fingerprint, workflow, stages, jobs, manual_items, diagnostics, confidence, created_at
FROM conversion_runs
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source, input_hash, fingerprint, workflow, stages, jobs, manual_items, diagnostics, confidence, created_at
FROM conversion_runs
WHERE id = ?;
`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		confidence sql.NullString
		created    string
	)
	err := sc.Scan(&run.ID, &run.Source, &run.InputHash, &run.Fingerprint, &run.Workflow,
		&run.Stages, &run.Jobs, &run.Manual, &run.Diagnostics, &confidence, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Confidence = confidence.String
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
