package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Result is a stored invocation outcome.
type Result struct {
	Seq     int64
	RMLVO   rmlvo.RMLVO
	Status  int
	Error   string
	Command string
}

// StatusCount is the number of results with a given status.
type StatusCount struct {
	Status int
	Count  int
}

// Runs lists all runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, compiler, root, total, started_at, finished_at, failed
		FROM runs
		ORDER BY started_at ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads a single run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, compiler, root, total, started_at, finished_at, failed
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, compiler, root, total, started_at, finished_at, failed
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// Summary counts results by status, ordered by status.
func (s *Store) Summary(ctx context.Context, runID string) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM results
		WHERE run_id = ?
		GROUP BY status
		ORDER BY status ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("summarize run: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Failures returns every non-zero result of a run in completion order.
func (s *Store) Failures(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, rules, model, layout, variant, option, status, error, command
		FROM results
		WHERE run_id = ? AND status != 0
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r               Result
			variant, option sql.NullString
		)
		if err := rows.Scan(&r.Seq, &r.RMLVO.Rules, &r.RMLVO.Model, &r.RMLVO.Layout,
			&variant, &option, &r.Status, &r.Error, &r.Command); err != nil {
			return nil, fmt.Errorf("list failures: %w", err)
		}
		r.RMLVO.Variant = variant.String
		r.RMLVO.Option = option.String
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		failed   sql.NullBool
	)
	if err := sc.Scan(&run.ID, &run.Compiler, &run.Root, &run.Total, &started, &finished, &failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: started_at: %w", err)
	}
	run.StartedAt = t
	if finished.Valid {
		ft, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: finished_at: %w", err)
		}
		run.FinishedAt = &ft
	}
	if failed.Valid {
		f := failed.Bool
		run.Failed = &f
	}
	return run, nil
}
