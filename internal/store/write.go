package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/keymapcheck/internal/compiler"
)

// Run describes one harness run.
type Run struct {
	ID         string
	Compiler   string
	Root       string
	Total      int
	StartedAt  time.Time
	FinishedAt *time.Time
	Failed     *bool
}

// Recorder appends results for one run. It implements engine.Sink.
//
// Thread-safety: Record may be called from any goroutine; seq values follow
// call order.
type Recorder struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int64
}

// BeginRun inserts a run row and returns a Recorder for its results.
// A UUIDv7 is generated when run.ID is empty.
func (s *Store) BeginRun(ctx context.Context, run Run) (*Recorder, error) {
	if run.ID == "" {
		run.ID = uuid.Must(uuid.NewV7()).String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, compiler, root, total, started_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Compiler,
		run.Root,
		run.Total,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Recorder{store: s, runID: run.ID}, nil
}

// RunID returns the ID of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record appends one finished invocation.
func (r *Recorder) Record(ctx context.Context, inv *compiler.Invocation) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO results
		(run_id, seq, rules, model, layout, variant, option, status, error, command)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.runID,
		seq,
		inv.Rules,
		inv.Model,
		inv.Layout,
		nullable(inv.Variant),
		nullable(inv.Option),
		inv.ExitStatus,
		inv.Error,
		inv.Command,
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Finish stamps the run with its end time and overall outcome.
func (r *Recorder) Finish(ctx context.Context, failed bool) error {
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, failed = ? WHERE id = ?
	`,
		time.Now().UTC().Format(time.RFC3339Nano),
		failed,
		r.runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
