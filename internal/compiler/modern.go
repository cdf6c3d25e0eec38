package compiler

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// Markers of the unrecognized-keysym warning, which xkbcli-compile-keymap does
// not reflect in its exit code. Recent xkbcommon prefixes it with a message
// id; older releases print only the text.
var unrecognizedKeysym = []string{"[XKB-107]", "Unrecognized keysym"}

// Modern compiles with xkbcli-compile-keymap.
type Modern struct {
	Runner Runner
	Tools  Tools
}

// Name implements Strategy.
func (m *Modern) Name() string { return NameModern }

// Run implements Strategy. Without an output directory the compiler runs in
// --test mode and no keymap is captured.
func (m *Modern) Run(ctx context.Context, req Request, inv *Invocation) {
	args := append([]string{"--include", req.Root}, rmlvoFlags("--", "options", inv.RMLVO)...)
	if req.OutputDir == "" && !req.NeedKeymap {
		args = append(args, "--test")
	}
	m.compile(ctx, Command{Name: m.Tools.Modern, Args: args}, inv)
}

// Recompile implements Recompiler by feeding inv.Keymap on stdin.
func (m *Modern) Recompile(ctx context.Context, req Request, inv *Invocation) {
	cmd := Command{
		Name:  m.Tools.Modern,
		Args:  []string{"--include", req.Root, "--keymap"},
		Stdin: inv.Keymap,
	}
	m.compile(ctx, cmd, inv)
}

func (m *Modern) compile(ctx context.Context, cmd Command, inv *Invocation) {
	inv.appendCommand(cmd.String())

	res, err := m.Runner.Run(ctx, cmd)
	if err != nil {
		inv.failSpawn(err)
		return
	}
	if res.ExitCode != 0 {
		inv.failTool(res)
		return
	}
	if line, ok := findLine(res.Stderr, unrecognizedKeysym...); ok {
		inv.fail(StatusUnrecognizedKeysym, line)
		return
	}
	inv.succeed(res.Stdout)
}

// findLine returns the first line of out containing any of markers.
func findLine(out []byte, markers ...string) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		for _, m := range markers {
			if strings.Contains(line, m) {
				return line, true
			}
		}
	}
	return "", false
}
