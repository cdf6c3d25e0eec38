package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/keymapcheck/internal/artifact"
	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/config"
	"github.com/roach88/keymapcheck/internal/engine"
	"github.com/roach88/keymapcheck/internal/enumerate"
	"github.com/roach88/keymapcheck/internal/registry"
	"github.com/roach88/keymapcheck/internal/report"
	"github.com/roach88/keymapcheck/internal/store"
)

// DefaultRoot is the usual install location of xkeyboard-config.
const DefaultRoot = "/usr/share/X11/xkb"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Config      string
	Root        string
	Compiler    string
	Rules       string
	Model       string
	Layout      string
	Variant     string
	Option      string
	Jobs        int
	ChunkSize   int
	Output      string
	Compression int
	Short       bool
	Single      bool
	NoProgress  bool
	DB          string

	Registries []string
	Tools      compiler.Tools
	Env        map[string]string

	// Runner overrides the subprocess runner (for testing).
	// If nil, an ExecRunner is built from Env.
	Runner compiler.Runner
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [registry...]",
		Short: "Compile every RMLVO combination",
		Long: `Compile every valid RMLVO combination declared by the registries.

Each registry is a path to an XML file or a rule-set name looked up as
<root>/rules/<name>.xml (e.g. "evdev", "evdev.extras"). Without arguments the
registry of the --rules rule-set is used.

Failures are always printed to stderr; successes are printed to stdout with
--verbose.

Exit codes:
  0 - Every combination compiled
  1 - One or more combinations failed
  2 - Configuration error (bad filters, missing registry, existing output dir)

Examples:
  keymapcheck run --root /usr/share/xkeyboard-config-2
  keymapcheck run --compiler xkbcomp --layout us --variant intl:dvorak
  keymapcheck run --single --layout de --option caps:none --verbose
  keymapcheck run --output /tmp/keymaps --compression 6 evdev evdev.extras`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Registries = args
			return runHarness(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Config, "config", "", "YAML run profile; explicit flags take precedence")
	f.StringVar(&opts.Root, "root", DefaultRoot, "keymap data tree")
	f.StringVar(&opts.Compiler, "compiler", compiler.NameModern, "compiler strategy ("+strings.Join(compiler.Names(), "|")+")")
	f.StringVar(&opts.Rules, "rules", "", "rule-set (default evdev)")
	f.StringVar(&opts.Model, "model", "", "only this model (* for all)")
	f.StringVar(&opts.Layout, "layout", "", "only this layout (* for all)")
	f.StringVar(&opts.Variant, "variant", "", "only these colon-separated variants; requires --layout")
	f.StringVar(&opts.Option, "option", "", "only this option (* for all)")
	f.IntVarP(&opts.Jobs, "jobs", "j", engine.DefaultJobs(), "number of parallel workers")
	f.IntVar(&opts.ChunkSize, "chunksize", 1, "combinations handed to a worker at once")
	f.StringVarP(&opts.Output, "output", "o", "", "write keymaps below this new directory")
	f.IntVar(&opts.Compression, "compression", 0, "gzip level for written keymaps (0 = none)")
	f.BoolVar(&opts.Short, "short", false, "one line per result")
	f.BoolVar(&opts.Single, "single", false, "compile one combination built from the filters")
	f.BoolVar(&opts.NoProgress, "no-progress", false, "do not draw a progress bar")
	f.StringVar(&opts.DB, "db", "", "record results in this SQLite database")

	return cmd
}

// applyProfile fills every option whose flag was not given explicitly.
func applyProfile(opts *RunOptions, p *config.Profile, cmd *cobra.Command) {
	flags := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if v != "" && !flags.Changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if v != 0 && !flags.Changed(name) {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool, v bool) {
		if v && !flags.Changed(name) {
			*dst = v
		}
	}

	setString("root", &opts.Root, p.Root)
	setString("compiler", &opts.Compiler, p.Compiler)
	setString("rules", &opts.Rules, p.Rules)
	setString("model", &opts.Model, p.Model)
	setString("layout", &opts.Layout, p.Layout)
	setString("variant", &opts.Variant, p.Variant)
	setString("option", &opts.Option, p.Option)
	setInt("jobs", &opts.Jobs, p.Jobs)
	setInt("chunksize", &opts.ChunkSize, p.ChunkSize)
	setString("output", &opts.Output, p.Output)
	setInt("compression", &opts.Compression, p.Compression)
	setBool("short", &opts.Short, p.Short)
	setBool("single", &opts.Single, p.Single)
	setString("db", &opts.DB, p.DB)
	if p.Verbose && !cmd.Flags().Changed("verbose") {
		opts.Verbose = true
	}

	if len(opts.Registries) == 0 {
		opts.Registries = p.Registries
	}
	opts.Tools = p.Tools
	opts.Env = p.Env
}

// Filters converts the selection flags.
func (o *RunOptions) Filters() registry.Filters {
	var variants []string
	if o.Variant != "" && o.Variant != "*" {
		variants = strings.Split(o.Variant, ":")
	}
	return registry.Filters{
		Rules:    o.Rules,
		Model:    o.Model,
		Layout:   o.Layout,
		Variants: variants,
		Option:   o.Option,
	}
}

func (o *RunOptions) reportFormat() report.Format {
	switch {
	case o.Format == "json":
		return report.FormatJSON
	case o.Short:
		return report.FormatShort
	default:
		return report.FormatFull
	}
}

func runHarness(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Config != "" {
		p, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		applyProfile(opts, p, cmd)
	}
	if opts.Compression < 0 || opts.Compression > 9 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid compression level %d: must be 0-9", opts.Compression))
	}

	logger := newLogger(opts.RootOptions)

	filters := opts.Filters()
	if err := filters.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid filters", err)
	}

	var (
		total int
		seq   enumerate.Sequence
	)
	if opts.Single {
		total, seq = enumerate.Single(filters)
	} else {
		snap, err := registry.Load(opts.Root, opts.Registries, filters)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load registry", err)
		}
		total, seq = enumerate.All(filters.RulesName(), snap)
	}
	logger.Debug("combinations enumerated", "total", total, "single", opts.Single)

	runner := opts.Runner
	if runner == nil {
		runner = compiler.NewExecRunner(mergeEnv(compiler.DefaultEnv, opts.Env))
	}
	strategy, err := compiler.ByName(opts.Compiler, runner, opts.Tools)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid compiler", err)
	}

	// Claim the output directory before anything is recorded, so a refused
	// run leaves no trace in the database.
	if opts.Output != "" {
		if err := artifact.CreateDir(opts.Output); err != nil {
			var existsErr *artifact.DirectoryExistsError
			if errors.As(err, &existsErr) {
				return WrapExitError(ExitCommandError, "refusing to mix runs", err)
			}
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	var recorder *store.Recorder
	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		recorder, err = st.BeginRun(ctx, store.Run{Compiler: strategy.Name(), Root: opts.Root, Total: total})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Info("recording results", "db", opts.DB, "run_id", recorder.RunID())
	}

	progress := engine.Progress(engine.Noop{})
	if !opts.NoProgress && opts.Format != "json" {
		progress = engine.NewBar(cmd.ErrOrStderr())
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if bar, ok := progress.(*engine.Bar); ok {
		out, errOut = bar.Clearing(out), bar.Clearing(errOut)
	}

	engineOpts := engine.Options{
		Root:           opts.Root,
		Jobs:           opts.Jobs,
		ChunkSize:      opts.ChunkSize,
		OutputDir:      opts.Output,
		OutputDirReady: opts.Output != "",
		Compression:    opts.Compression,
		Strategy:       strategy,
		Reporter: &report.Reporter{
			Out:     out,
			Err:     errOut,
			Verbose: opts.Verbose,
			Format:  opts.reportFormat(),
		},
		Progress: progress,
		Logger:   logger,
	}
	if recorder != nil {
		engineOpts.Sink = recorder
	}

	summary, err := engine.RunAll(ctx, engineOpts, seq, total)
	if err != nil {
		if summary == nil {
			return WrapExitError(ExitCommandError, "run failed to start", err)
		}
		return WrapExitError(ExitFailure, "run interrupted", err)
	}

	if recorder != nil {
		if err := recorder.Finish(ctx, summary.AnyFailed()); err != nil {
			logger.Error("failed to finish run record", "error", err)
		}
	}

	return outputSummary(cmd, opts, summary)
}

func outputSummary(cmd *cobra.Command, opts *RunOptions, s *engine.Summary) error {
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: s}
		if s.AnyFailed() {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeRunFailed, Message: failedMessage(s)}
		}
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		writeTextSummary(cmd.ErrOrStderr(), s)
	}

	if s.AnyFailed() {
		return NewExitError(ExitFailure, failedMessage(s))
	}
	return nil
}

func writeTextSummary(w io.Writer, s *engine.Summary) {
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)

	statuses := make([]int, 0, len(s.ByStatus))
	for status := range s.ByStatus {
		if status != compiler.StatusOK {
			statuses = append(statuses, status)
		}
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		fmt.Fprintf(w, "  status %d: %d\n", status, s.ByStatus[status])
	}
}

func failedMessage(s *engine.Summary) string {
	return fmt.Sprintf("%d of %d combination(s) failed", s.Failed, s.Done)
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// signalContext cancels on SIGINT/SIGTERM, or when the parent is done.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
