package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keymapcheck/internal/artifact"
	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/store"
	"github.com/roach88/keymapcheck/internal/testutil"
)

const testRoot = "testdata/xkb"

type runOutput struct {
	stdout, stderr *bytes.Buffer
	err            error
	runner         *testutil.ScriptedRunner
}

func execRun(t *testing.T, h testutil.Handler, args ...string) runOutput {
	t.Helper()
	runner := testutil.NewScriptedRunner(h)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, Runner: runner}
	cmd := newRunCommand(opts)
	out := runOutput{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, runner: runner}
	cmd.SetOut(out.stdout)
	cmd.SetErr(out.stderr)
	cmd.SetArgs(append([]string{"--root", testRoot, "--no-progress"}, args...))
	out.err = cmd.Execute()
	return out
}

func failOn(arg string) testutil.Handler {
	return func(cmd compiler.Command) (compiler.Result, error) {
		for _, a := range cmd.Args {
			if a == arg {
				return compiler.Result{Stderr: []byte("compile error"), ExitCode: 1}, nil
			}
		}
		return testutil.EchoCompilers(cmd)
	}
}

func TestRun_AllPass(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers)

	require.NoError(t, out.err)
	assert.Equal(t, 4, out.runner.CallCount())
	assert.Empty(t, out.stdout.String())
	assert.Contains(t, out.stderr.String(), "Summary: 4 passed, 0 failed, 4 total")
}

func TestRun_FailureExitsOne(t *testing.T) {
	out := execRun(t, failOn("intl"), "--short")

	require.Error(t, out.err)
	assert.Equal(t, ExitFailure, GetExitCode(out.err))
	assert.Contains(t, out.err.Error(), "2 of 4 combination(s) failed")
	assert.Contains(t, out.stderr.String(), `variant: "intl"`)
	assert.Contains(t, out.stderr.String(), "status 1: 2")
}

func TestRun_VerbosePrintsSuccesses(t *testing.T) {
	runner := testutil.NewScriptedRunner(testutil.EchoCompilers)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text", Verbose: true}, Runner: runner}
	cmd := newRunCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--root", testRoot, "--no-progress", "--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 4, strings.Count(stdout.String(), "- {rmlvo:"))
}

func TestRun_Single(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "--single", "--layout", "de", "--variant", "neo")

	require.NoError(t, out.err)
	require.Equal(t, 1, out.runner.CallCount())
	args := out.runner.Calls()[0].Args
	assert.Contains(t, args, "de")
	assert.Contains(t, args, "neo")
}

func TestRun_LegacyCompiler(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "--compiler", "xkbcomp", "--layout", "us", "--variant", "intl")

	require.NoError(t, out.err)
	// 1 variant × (1 + 1 option) × 2 tools
	assert.Equal(t, 4, out.runner.CallCount())
	assert.Equal(t, "setxkbmap", out.runner.Calls()[0].Name)
}

func TestRun_VariantWithoutLayout(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "--variant", "intl")

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
	assert.Zero(t, out.runner.CallCount())
}

func TestRun_UnknownRegistry(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "nosuchrules")

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
	assert.Contains(t, out.err.Error(), "cannot resolve registry")
}

func TestRun_UnknownCompiler(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "--compiler", "clang")

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
}

func TestRun_InvalidCompression(t *testing.T) {
	out := execRun(t, testutil.EchoCompilers, "--compression", "12")

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
}

func TestRun_ExistingOutputDir(t *testing.T) {
	dir := t.TempDir()

	out := execRun(t, testutil.EchoCompilers, "--output", dir)

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
	assert.Zero(t, out.runner.CallCount())
}

func TestRun_ExistingOutputDirRecordsNothing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out := execRun(t, testutil.EchoCompilers, "--output", t.TempDir(), "--db", dbPath)

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "a refused run must not appear in the database")
}

func TestRun_WritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keymaps")

	out := execRun(t, testutil.EchoCompilers, "--output", dir, "--compression", "6")

	require.NoError(t, out.err)
	files, err := artifact.Walk(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pc105/us(intl)+grp:lwin_switch.gz",
		"pc105/us(intl).gz",
		"pc105/us+grp:lwin_switch.gz",
		"pc105/us.gz",
	}, files)
}

func TestRun_JSONFormat(t *testing.T) {
	runner := testutil.NewScriptedRunner(failOn("grp:lwin_switch"))
	opts := &RunOptions{RootOptions: &RootOptions{Format: "json"}, Runner: runner}
	cmd := newRunCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--root", testRoot})

	err := cmd.Execute()
	require.Error(t, err)

	// failures are JSON lines on stderr
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	var failures int
	for _, line := range lines {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil {
			failures++
			assert.Equal(t, "grp:lwin_switch", rec["option"])
		}
	}
	assert.Equal(t, 2, failures)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeRunFailed, resp.Error.Code)
}

func TestRun_RecordsToDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out := execRun(t, failOn("intl"), "--db", dbPath)
	require.Error(t, out.err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xkbcommon", run.Compiler)
	assert.Equal(t, 4, run.Total)
	require.NotNil(t, run.Failed)
	assert.True(t, *run.Failed)

	failures, err := st.Failures(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, failures, 2)
}

func TestRun_ProfileWithFlagOverride(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
compiler: xkbcomp
layout: us
variant: intl
option: grp:lwin_switch
tools:
  legacy: /opt/bin/xkbcomp
`), 0644))

	out := execRun(t, testutil.EchoCompilers, "--config", profile, "--compiler", "xkbcommon")

	require.NoError(t, out.err)
	calls := out.runner.Calls()
	// the option-less tuple plus the filtered option
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, "xkbcli-compile-keymap", c.Name, "explicit flag wins over profile")
		assert.Contains(t, c.Args, "intl")
	}
}

func TestRun_ProfileTools(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("compiler: legacy\nsingle: true\ntools: {legacy: /opt/bin/xkbcomp}\n"), 0644))

	out := execRun(t, testutil.EchoCompilers, "--config", profile)

	require.NoError(t, out.err)
	calls := out.runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "setxkbmap", calls[0].Name)
	assert.Equal(t, "/opt/bin/xkbcomp", calls[1].Name)
}

func TestRun_InvalidProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("jobs: 0\n"), 0644))

	out := execRun(t, testutil.EchoCompilers, "--config", profile)

	require.Error(t, out.err)
	assert.Equal(t, ExitCommandError, GetExitCode(out.err))
	assert.Contains(t, out.err.Error(), "invalid profile")
}
