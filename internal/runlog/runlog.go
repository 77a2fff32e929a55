// Package runlog keeps a SQLite history of CLI and API requests.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Status is the state of a run.
type Status string

// Run states.
const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Run is one recorded request.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Cell       string     `json:"cell,omitempty"`
	Args       []string   `json:"args,omitempty"`
	Status     Status     `json:"status"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	Matched    int        `json:"matched"`
	Unmatched  []string   `json:"unmatched,omitempty"`
	Rows       int        `json:"rows"`
	Outputs    []string   `json:"outputs,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Outcome is what a finished run reports.
type Outcome struct {
	Err       error
	ErrorKind string
	Matched   int
	Unmatched []string
	Rows      int
	Outputs   []string
}

// Filter narrows List.
type Filter struct {
	Command string
	Status  Status
	Cell    string
	Limit   int // default 20
}

// Store is the SQLite run history.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and configures WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	cell        TEXT NOT NULL DEFAULT '',
	args        TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'running',
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	matched     INTEGER NOT NULL DEFAULT 0,
	unmatched   TEXT NOT NULL DEFAULT '[]',
	rows        INTEGER NOT NULL DEFAULT 0,
	outputs     TEXT NOT NULL DEFAULT '[]',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_cell ON runs(cell);
`

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "runlog: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start records a running request and returns it.
func (s *Store) Start(ctx context.Context, command, cell string, args []string) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String(),
		Command:   command,
		Cell:      cell,
		Args:      args,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	argsJSON, err := json.Marshal(nonNil(args))
	if err != nil {
		return nil, eris.Wrap(err, "runlog: marshal args")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, cell, args, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, command, cell, string(argsJSON), string(StatusRunning), r.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}
	return r, nil
}

// Finish records the outcome of run id.
func (s *Store) Finish(ctx context.Context, id string, out Outcome) error {
	status, msg := StatusOK, ""
	if out.Err != nil {
		status, msg = StatusFailed, out.Err.Error()
	}
	unmatched, err := json.Marshal(nonNil(out.Unmatched))
	if err != nil {
		return eris.Wrap(err, "runlog: marshal unmatched")
	}
	outputs, err := json.Marshal(nonNil(out.Outputs))
	if err != nil {
		return eris.Wrap(err, "runlog: marshal outputs")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_kind = ?, error = ?, matched = ?, unmatched = ?, rows = ?, outputs = ?, finished_at = ? WHERE id = ?`,
		string(status), out.ErrorKind, msg, out.Matched, string(unmatched), out.Rows, string(outputs), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: update run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run not found: %s", id)
	}
	return nil
}

const selectRun = `SELECT id, command, cell, args, status, error_kind, error, matched, unmatched, rows, outputs, started_at, finished_at FROM runs`

// Get returns run id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	return scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	query := selectRun + ` WHERE 1=1`
	var args []any
	if f.Command != "" {
		query += ` AND command = ?`
		args = append(args, f.Command)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Cell != "" {
		query += ` AND cell = ?`
		args = append(args, f.Cell)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r                        Run
		status                   string
		args, unmatched, outputs string
		finished                 sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Command, &r.Cell, &args, &status, &r.ErrorKind, &r.Error,
		&r.Matched, &unmatched, &r.Rows, &outputs, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("runlog: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "runlog: scan run")
	}
	r.Status = Status(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{args, &r.Args}, {unmatched, &r.Unmatched}, {outputs, &r.Outputs}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, eris.Wrap(err, "runlog: unmarshal run")
		}
		if len(*f.dst) == 0 {
			*f.dst = nil
		}
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
