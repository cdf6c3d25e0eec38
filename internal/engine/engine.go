package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/keymapcheck/internal/artifact"
	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/enumerate"
	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Reporter prints one finished invocation.
type Reporter interface {
	Report(inv *compiler.Invocation) error
}

// Sink records finished invocations, e.g. in a results database.
type Sink interface {
	Record(ctx context.Context, inv *compiler.Invocation) error
}

// Options configures a run.
type Options struct {
	// Root is the keymap data tree.
	Root string

	// Jobs is the worker count. Defaults to DefaultJobs().
	Jobs int

	// ChunkSize is how many tuples a worker takes at once. Defaults to 1.
	ChunkSize int

	// OutputDir, when set, must not exist yet and receives artifacts.
	OutputDir string

	// OutputDirReady means the caller already created OutputDir with
	// artifact.CreateDir, so RunAll must not create it again.
	OutputDirReady bool

	// Compression is the gzip level for artifacts (0 = uncompressed).
	Compression int

	Strategy compiler.Strategy
	Reporter Reporter
	Progress Progress
	Sink     Sink
	Logger   *slog.Logger
}

// DefaultJobs scales with the CPUs available; workers mostly wait on child
// processes.
func DefaultJobs() int {
	return 4 * runtime.NumCPU()
}

func (o Options) withDefaults() Options {
	if o.Jobs <= 0 {
		o.Jobs = DefaultJobs()
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1
	}
	if o.Progress == nil {
		o.Progress = Noop{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Summary aggregates a finished run.
type Summary struct {
	Total    int         `json:"total"`
	Done     int         `json:"done"`
	Passed   int         `json:"passed"`
	Failed   int         `json:"failed"`
	ByStatus map[int]int `json:"by_status"`
}

// AnyFailed reports whether at least one invocation did not succeed.
func (s *Summary) AnyFailed() bool {
	return s.Failed > 0
}

func (s *Summary) add(inv *compiler.Invocation) {
	s.Done++
	s.ByStatus[inv.ExitStatus]++
	if inv.Failed() {
		s.Failed++
	} else {
		s.Passed++
	}
}

// RunAll executes every tuple of seq. total sizes the progress indicator.
//
// Per-tuple failures never abort the run; they are counted in the Summary.
// An error is returned only for startup problems (such as an existing output
// directory, in which case no work is done) or cancellation of ctx.
func RunAll(ctx context.Context, opts Options, seq enumerate.Sequence, total int) (*Summary, error) {
	opts = opts.withDefaults()
	if opts.Strategy == nil {
		return nil, errors.New("engine: no compiler strategy")
	}
	if opts.OutputDir != "" && !opts.OutputDirReady {
		if err := artifact.CreateDir(opts.OutputDir); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := compiler.Request{
		Root:        opts.Root,
		OutputDir:   opts.OutputDir,
		Compression: opts.Compression,
	}
	log := opts.Logger.With("compiler", opts.Strategy.Name())
	log.Info("run starting", "combinations", total, "jobs", opts.Jobs, "chunksize", opts.ChunkSize)

	jobs := make(chan []rmlvo.RMLVO, opts.Jobs)
	results := make(chan *compiler.Invocation, opts.Jobs*opts.ChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		return feed(gctx, seq, opts.ChunkSize, jobs)
	})
	for i := 0; i < opts.Jobs; i++ {
		g.Go(func() error {
			return work(gctx, opts.Strategy, req, jobs, results)
		})
	}

	var poolErr error
	go func() {
		poolErr = g.Wait()
		close(results)
	}()

	summary := &Summary{Total: total, ByStatus: make(map[int]int)}
	opts.Progress.Start(total)
	for inv := range results {
		summary.add(inv)
		if opts.Reporter != nil {
			if err := opts.Reporter.Report(inv); err != nil {
				log.Warn("report failed", "rmlvo", inv.RMLVO.String(), "error", err)
			}
		}
		if opts.Sink != nil {
			if err := opts.Sink.Record(ctx, inv); err != nil {
				log.Warn("record failed", "rmlvo", inv.RMLVO.String(), "error", err)
			}
		}
		opts.Progress.Add(1)
	}
	opts.Progress.Finish()

	log.Info("run finished", "done", summary.Done, "passed", summary.Passed, "failed", summary.Failed)
	if poolErr != nil {
		return summary, poolErr
	}
	return summary, nil
}

// feed pulls chunks of tuples from seq until it is exhausted.
func feed(ctx context.Context, seq enumerate.Sequence, size int, jobs chan<- []rmlvo.RMLVO) error {
	for {
		chunk := make([]rmlvo.RMLVO, 0, size)
		for len(chunk) < size {
			r, ok := seq.Next()
			if !ok {
				break
			}
			chunk = append(chunk, r)
		}
		if len(chunk) == 0 {
			return nil
		}
		select {
		case jobs <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
		if len(chunk) < size {
			return nil
		}
	}
}

func work(ctx context.Context, s compiler.Strategy, req compiler.Request, jobs <-chan []rmlvo.RMLVO, results chan<- *compiler.Invocation) error {
	for chunk := range jobs {
		for _, tuple := range chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			inv := compiler.RunTuple(ctx, s, req, tuple)
			select {
			case results <- inv:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
