package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/roach88/keymapcheck/internal/artifact"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Brief bool
}

// CompareResult lists how two artifact trees differ.
// Paths are relative and have any .gz suffix removed.
type CompareResult struct {
	Identical int      `json:"identical"`
	Differ    []string `json:"differ"`
	OnlyA     []string `json:"only_a"`
	OnlyB     []string `json:"only_b"`
}

// Clean reports whether the trees hold the same keymaps.
func (r *CompareResult) Clean() bool {
	return len(r.Differ) == 0 && len(r.OnlyA) == 0 && len(r.OnlyB) == 0
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <dir-a> <dir-b>",
		Short: "Compare two artifact directories",
		Long: `Compare the keymaps written by two runs (run --output).

Compressed and uncompressed artifacts are compared by content. Differences
are printed as line diffs unless --brief is given.

Exit codes:
  0 - Both trees hold identical keymaps
  1 - At least one keymap differs or is missing on one side
  2 - Command error (unreadable directory, corrupt artifact)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Brief, "brief", false, "only list differing files")

	return cmd
}

func runCompare(opts *CompareOptions, dirA, dirB string, cmd *cobra.Command) error {
	filesA, err := indexArtifacts(dirA)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan "+dirA, err)
	}
	filesB, err := indexArtifacts(dirB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan "+dirB, err)
	}

	result := &CompareResult{Differ: []string{}, OnlyA: []string{}, OnlyB: []string{}}
	diffs := make(map[string]string)

	for _, key := range sortedKeys(filesA) {
		relB, ok := filesB[key]
		if !ok {
			result.OnlyA = append(result.OnlyA, key)
			continue
		}
		a, err := artifact.ReadRaw(filepath.Join(dirA, filesA[key]))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read artifact", err)
		}
		b, err := artifact.ReadRaw(filepath.Join(dirB, relB))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read artifact", err)
		}
		if bytes.Equal(a, b) {
			result.Identical++
			continue
		}
		result.Differ = append(result.Differ, key)
		if !opts.Brief {
			diffs[key] = lineDiff(string(a), string(b))
		}
	}
	for _, key := range sortedKeys(filesB) {
		if _, ok := filesA[key]; !ok {
			result.OnlyB = append(result.OnlyB, key)
		}
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Clean() {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeArtifactsDiff, Message: compareMessage(result)}
		}
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		writeCompareText(cmd.OutOrStdout(), result, diffs)
	}

	if !result.Clean() {
		return NewExitError(ExitFailure, compareMessage(result))
	}
	return nil
}

// indexArtifacts maps the suffix-free relative path to the real one.
func indexArtifacts(dir string) (map[string]string, error) {
	files, err := artifact.Walk(dir)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(files))
	for _, f := range files {
		key := strings.TrimSuffix(f, artifact.GzipSuffix)
		if prev, ok := index[key]; ok {
			return nil, fmt.Errorf("ambiguous artifact %s: both %s and %s exist", key, prev, f)
		}
		index[key] = f
	}
	return index, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lineDiff renders a line-oriented diff with -/+ prefixes.
func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(charsA, charsB, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

func writeCompareText(w io.Writer, r *CompareResult, diffs map[string]string) {
	for _, key := range r.Differ {
		fmt.Fprintf(w, "differs: %s\n", key)
		if d, ok := diffs[key]; ok {
			fmt.Fprint(w, d)
		}
	}
	for _, key := range r.OnlyA {
		fmt.Fprintf(w, "only in a: %s\n", key)
	}
	for _, key := range r.OnlyB {
		fmt.Fprintf(w, "only in b: %s\n", key)
	}
	fmt.Fprintf(w, "Compare: %d identical, %d differ, %d only in a, %d only in b\n",
		r.Identical, len(r.Differ), len(r.OnlyA), len(r.OnlyB))
}

func compareMessage(r *CompareResult) string {
	return fmt.Sprintf("%d keymap(s) differ, %d missing", len(r.Differ), len(r.OnlyA)+len(r.OnlyB))
}
