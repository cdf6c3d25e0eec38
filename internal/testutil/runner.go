// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/keymapcheck/internal/compiler"
)

// Handler answers a single command.
type Handler func(cmd compiler.Command) (compiler.Result, error)

// ScriptedRunner is a compiler.Runner that answers from a Handler and records
// every command it was asked to run.
//
// Thread-safety: safe for concurrent use by engine workers.
type ScriptedRunner struct {
	mu      sync.Mutex
	handler Handler
	calls   []compiler.Command
}

// NewScriptedRunner returns a runner backed by h.
func NewScriptedRunner(h Handler) *ScriptedRunner {
	return &ScriptedRunner{handler: h}
}

// Run implements compiler.Runner.
func (r *ScriptedRunner) Run(_ context.Context, cmd compiler.Command) (compiler.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	return r.handler(cmd)
}

// Calls returns a copy of the recorded commands in call order.
func (r *ScriptedRunner) Calls() []compiler.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]compiler.Command(nil), r.calls...)
}

// CallCount returns how many commands ran.
func (r *ScriptedRunner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// EchoCompilers simulates working compilers: the resolver prints a keymap
// naming its arguments, and both compilers echo stdin, or print a keymap built
// from their arguments when stdin is empty.
func EchoCompilers(cmd compiler.Command) (compiler.Result, error) {
	if len(cmd.Stdin) > 0 {
		return compiler.Result{Stdout: cmd.Stdin}, nil
	}
	out := "xkb_keymap { // " + cmd.Name
	for _, a := range cmd.Args {
		out += " " + a
	}
	out += " }\n"
	return compiler.Result{Stdout: []byte(out)}, nil
}
