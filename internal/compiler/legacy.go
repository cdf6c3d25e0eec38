package compiler

import (
	"context"
	"strings"
)

// displayUnavailable is what setxkbmap prints without an X server.
const displayUnavailable = "Cannot open display"

// Legacy resolves the tuple with setxkbmap and compiles the result with
// xkbcomp.
type Legacy struct {
	Runner Runner
	Tools  Tools
}

// Name implements Strategy.
func (l *Legacy) Name() string { return NameLegacy }

func (l *Legacy) resolveCommand(req Request, inv *Invocation) Command {
	args := append([]string{"-print", "-I", req.Root}, rmlvoFlags("-", "option", inv.RMLVO)...)
	return Command{Name: l.Tools.Resolver, Args: args}
}

func (l *Legacy) compileCommand(req Request, stdin []byte) Command {
	return Command{
		Name:  l.Tools.Legacy,
		Args:  []string{"-I", "-I" + req.Root, "-xkb", "-", "-"},
		Stdin: stdin,
	}
}

// Run implements Strategy.
func (l *Legacy) Run(ctx context.Context, req Request, inv *Invocation) {
	resolve := l.resolveCommand(req, inv)
	inv.appendCommand(resolve.String())

	res, err := l.Runner.Run(ctx, resolve)
	if err != nil {
		inv.failSpawn(err)
		return
	}
	if strings.Contains(string(res.Stderr), displayUnavailable) {
		inv.fail(StatusEnvUnavailable, strings.TrimSpace(string(res.Stderr)))
		return
	}
	if res.ExitCode != 0 {
		inv.failTool(res)
		return
	}

	l.compile(ctx, l.compileCommand(req, res.Stdout), inv)
}

// Recompile implements Recompiler by feeding inv.Keymap to xkbcomp.
func (l *Legacy) Recompile(ctx context.Context, req Request, inv *Invocation) {
	l.compile(ctx, l.compileCommand(req, inv.Keymap), inv)
}

func (l *Legacy) compile(ctx context.Context, cmd Command, inv *Invocation) {
	inv.appendCommand(cmd.String())

	res, err := l.Runner.Run(ctx, cmd)
	if err != nil {
		inv.failSpawn(err)
		return
	}
	if res.ExitCode != 0 {
		inv.failTool(res)
		return
	}
	inv.succeed(res.Stdout)
}
