package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/report"
	"github.com/roach88/keymapcheck/internal/store"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	List bool
}

// RunReport is the stored outcome of one run.
type RunReport struct {
	RunID    string          `json:"run_id"`
	Compiler string          `json:"compiler"`
	Root     string          `json:"root"`
	Total    int             `json:"total"`
	Started  string          `json:"started_at"`
	Failed   *bool           `json:"failed,omitempty"`
	ByStatus map[int]int     `json:"by_status"`
	Failures []report.Record `json:"failures"`
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results <db> [run-id]",
		Short: "Show results recorded with run --db",
		Long: `Show the status counts and failures of a recorded run.

Without a run ID the most recent run is shown. --list prints all runs.

Examples:
  keymapcheck results results.db
  keymapcheck results results.db 0192f1c4-7a53-7c4e-9a1e-3b4f5d6e7f80
  keymapcheck results results.db --list --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 2 {
				runID = args[1]
			}
			return showResults(opts, args[0], runID, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func showResults(opts *ResultsOptions, dbPath, runID string, cmd *cobra.Command) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	ctx := cmd.Context()

	if opts.List {
		runs, err := st.Runs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRuns(cmd, opts, runs)
	}

	var run store.Run
	if runID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, runID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "no such run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	counts, err := st.Summary(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize run", err)
	}
	failures, err := st.Failures(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load failures", err)
	}

	rep := RunReport{
		RunID:    run.ID,
		Compiler: run.Compiler,
		Root:     run.Root,
		Total:    run.Total,
		Started:  run.StartedAt.Format(time.RFC3339),
		Failed:   run.Failed,
		ByStatus: make(map[int]int, len(counts)),
		Failures: make([]report.Record, 0, len(failures)),
	}
	for _, c := range counts {
		rep.ByStatus[c.Status] = c.Count
	}
	invs := make([]*compiler.Invocation, 0, len(failures))
	for _, f := range failures {
		inv := compiler.NewInvocation(f.RMLVO)
		inv.ExitStatus = f.Status
		inv.Error = f.Error
		inv.Command = f.Command
		invs = append(invs, inv)
		rep.Failures = append(rep.Failures, report.NewRecord(inv))
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: rep})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s, %s)\n", rep.RunID, rep.Compiler, rep.Started)
	for _, c := range counts {
		fmt.Fprintf(w, "  status %d: %d\n", c.Status, c.Count)
	}
	for _, inv := range invs {
		if opts.Verbose {
			fmt.Fprint(w, report.Full(inv))
		} else {
			fmt.Fprint(w, report.Short(inv))
		}
	}
	return nil
}

func outputRuns(cmd *cobra.Command, opts *ResultsOptions, runs []store.Run) error {
	if opts.Format == "json" {
		type runJSON struct {
			ID       string `json:"run_id"`
			Compiler string `json:"compiler"`
			Total    int    `json:"total"`
			Started  string `json:"started_at"`
			Failed   *bool  `json:"failed,omitempty"`
		}
		data := make([]runJSON, 0, len(runs))
		for _, r := range runs {
			data = append(data, runJSON{r.ID, r.Compiler, r.Total, r.StartedAt.Format(time.RFC3339), r.Failed})
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: data})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		outcome := "unfinished"
		if r.Failed != nil {
			outcome = "passed"
			if *r.Failed {
				outcome = "failed"
			}
		}
		fmt.Fprintf(w, "%s  %s  %d combinations  %s  %s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Total, r.Compiler, outcome)
	}
	return nil
}
