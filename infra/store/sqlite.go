// Package store persists calibration runs and their fitted parameter
// ensembles.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/fit"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunInfo summarizes a stored calibration run.
type RunInfo struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Members  int           `json:"members"`
	Fitted   int           `json:"fitted"`
}

// Record is one stored member fit.
type Record struct {
	RunID       string           `json:"run_id"`
	Member      string           `json:"member"`
	Params      discharge.Params `json:"params"`
	Objective   float64          `json:"objective"`
	Evaluations int              `json:"evaluations"`
	Iterations  int              `json:"iterations"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// SQLiteStore keeps runs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fit_runs (
    id TEXT PRIMARY KEY,
    started INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS member_params (
    run_id TEXT NOT NULL REFERENCES fit_runs(id),
    member TEXT NOT NULL,
    sid_sens REAL,
    fast_rate REAL,
    temp0 REAL,
    temp_thresh REAL,
    objective REAL,
    evaluations INTEGER,
    iterations INTEGER,
    status TEXT,
    error TEXT,
    PRIMARY KEY (run_id, member)
);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun writes the run and all its member results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run fit.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fit_runs (id, started, duration_ns) VALUES (?, ?, ?)`,
		run.ID, run.Started.UnixNano(), int64(run.Duration)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, res := range run.Results {
		if err := saveResult(ctx, tx, run.ID, res); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveResult upserts a single member result of an existing run.
func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, res fit.MemberResult) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fit_runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return saveResult(ctx, s.db, runID, res)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveResult(ctx context.Context, db execer, runID string, res fit.MemberResult) error {
	msg := ""
	if res.Err != nil {
		msg = res.Err.Error()
	}
	p := res.Params
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO member_params
        (run_id, member, sid_sens, fast_rate, temp0, temp_thresh, objective, evaluations, iterations, status, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Member, p.SIDSens, p.FastRate, p.Temp0, p.TempThresh,
		res.Objective, res.Evaluations, res.Iterations, res.Status, msg)
	if err != nil {
		return fmt.Errorf("insert member %s: %w", res.Member, err)
	}
	return nil
}

// ListRuns returns stored runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.id, r.started, r.duration_ns,
               COUNT(m.member),
               COALESCE(SUM(CASE WHEN m.error = '' THEN 1 ELSE 0 END), 0)
        FROM fit_runs r LEFT JOIN member_params m ON m.run_id = r.id
        GROUP BY r.id
        ORDER BY r.started DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			started int64
			dur     int64
		)
		if err := rows.Scan(&info.ID, &started, &dur, &info.Members, &info.Fitted); err != nil {
			return nil, err
		}
		info.Started = time.Unix(0, started).UTC()
		info.Duration = time.Duration(dur)
		out = append(out, info)
	}
	return out, rows.Err()
}

// LatestRun returns the ID of the most recent run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM fit_runs ORDER BY started DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return id, err
}

// ListResults returns the member fits of a run ordered by member name.
// Failed members are included with their error message.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, member, sid_sens, fast_rate, temp0, temp_thresh,
               objective, evaluations, iterations, status, error
        FROM member_params WHERE run_id = ? ORDER BY member`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.Member,
			&r.Params.SIDSens, &r.Params.FastRate, &r.Params.Temp0, &r.Params.TempThresh,
			&r.Objective, &r.Evaluations, &r.Iterations, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
