package compiler

import (
	"strings"

	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Terminal statuses that do not come from a tool's exit code.
const (
	StatusOK                 = 0
	StatusSkipped            = 77
	StatusEnvUnavailable     = 90
	StatusUnrecognizedKeysym = 99
	StatusSpawnFailed        = 127
)

// Invocation is one tuple together with its execution result.
//
// It is created by RunTuple, filled in by exactly one strategy run and not
// modified afterwards.
type Invocation struct {
	rmlvo.RMLVO

	ExitStatus int
	Error      string
	Keymap     []byte
	Command    string
}

// NewInvocation returns an envelope in the skipped state.
func NewInvocation(r rmlvo.RMLVO) *Invocation {
	return &Invocation{RMLVO: r, ExitStatus: StatusSkipped}
}

// Failed reports whether the invocation ended in anything but success.
func (inv *Invocation) Failed() bool {
	return inv.ExitStatus != StatusOK
}

func (inv *Invocation) succeed(keymap []byte) {
	inv.ExitStatus = StatusOK
	inv.Error = ""
	inv.Keymap = keymap
}

func (inv *Invocation) fail(status int, msg string) {
	inv.ExitStatus = status
	inv.Error = msg
	inv.Keymap = nil
}

// failTool records a non-zero tool exit with everything it printed.
func (inv *Invocation) failTool(res Result) {
	inv.fail(res.ExitCode, combinedOutput(res))
}

func (inv *Invocation) failSpawn(err error) {
	inv.fail(StatusSpawnFailed, err.Error())
}

func (inv *Invocation) appendCommand(cmd string) {
	if inv.Command == "" {
		inv.Command = cmd
		return
	}
	inv.Command += " | " + cmd
}

func combinedOutput(res Result) string {
	var parts []string
	if s := strings.TrimSpace(string(res.Stdout)); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(string(res.Stderr)); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}
