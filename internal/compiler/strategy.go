package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/keymapcheck/internal/artifact"
	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Request carries the per-run settings every strategy needs.
type Request struct {
	// Root is the keymap data tree passed to every compiler as include path.
	Root string

	// OutputDir receives artifacts when non-empty.
	OutputDir string

	// Compression is the gzip level for artifacts; 0 writes them raw.
	Compression int

	// NeedKeymap forces a full compile even without OutputDir, for stages
	// whose output feeds another compiler.
	NeedKeymap bool
}

// Strategy compiles one tuple and records the outcome in inv.
type Strategy interface {
	Name() string
	Run(ctx context.Context, req Request, inv *Invocation)
}

// Recompiler compiles a keymap given on stdin, the second half of a chain.
type Recompiler interface {
	Recompile(ctx context.Context, req Request, inv *Invocation)
}

// Tools names the external binaries.
type Tools struct {
	Resolver string `yaml:"resolver"`
	Legacy   string `yaml:"legacy"`
	Modern   string `yaml:"modern"`
}

// DefaultTools are looked up in $PATH.
var DefaultTools = Tools{
	Resolver: "setxkbmap",
	Legacy:   "xkbcomp",
	Modern:   "xkbcli-compile-keymap",
}

// WithDefaults fills empty entries from DefaultTools.
func (t Tools) WithDefaults() Tools {
	if t.Resolver == "" {
		t.Resolver = DefaultTools.Resolver
	}
	if t.Legacy == "" {
		t.Legacy = DefaultTools.Legacy
	}
	if t.Modern == "" {
		t.Modern = DefaultTools.Modern
	}
	return t
}

// Strategy names accepted by ByName.
const (
	NameLegacy           = "xkbcomp"
	NameModern           = "xkbcommon"
	NameLegacyThenModern = "xkbcomp-to-xkbcommon"
	NameModernThenLegacy = "xkbcommon-to-xkbcomp"
)

var aliases = map[string]string{
	"legacy":        NameLegacy,
	"modern":        NameModern,
	"legacy-modern": NameLegacyThenModern,
	"modern-legacy": NameModernThenLegacy,
}

// Names lists the canonical strategy names, sorted.
func Names() []string {
	names := []string{NameLegacy, NameModern, NameLegacyThenModern, NameModernThenLegacy}
	sort.Strings(names)
	return names
}

// ByName builds the named strategy on top of runner.
func ByName(name string, runner Runner, tools Tools) (Strategy, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	tools = tools.WithDefaults()
	legacy := &Legacy{Runner: runner, Tools: tools}
	modern := &Modern{Runner: runner, Tools: tools}

	switch name {
	case NameLegacy:
		return legacy, nil
	case NameModern:
		return modern, nil
	case NameLegacyThenModern:
		return &Chain{name: name, First: legacy, Second: modern}, nil
	case NameModernThenLegacy:
		return &Chain{name: name, First: modern, Second: legacy}, nil
	default:
		return nil, fmt.Errorf("unknown compiler %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// RunTuple runs s for one tuple and, when requested, persists the keymap.
// A failed artifact write turns the invocation into a failure.
func RunTuple(ctx context.Context, s Strategy, req Request, tuple rmlvo.RMLVO) *Invocation {
	inv := NewInvocation(tuple)
	s.Run(ctx, req, inv)

	if req.OutputDir != "" && !inv.Failed() {
		if err := artifact.Write(req.OutputDir, inv.RMLVO, inv.Keymap, req.Compression); err != nil {
			slog.Error("artifact write failed", "rmlvo", tuple.String(), "error", err)
			inv.fail(1, err.Error())
		}
	}
	return inv
}

// rmlvoFlags turns a tuple into "<prefix>key value" pairs, skipping absent
// axes. optionKey lets each tool spell the option axis its own way.
func rmlvoFlags(prefix, optionKey string, r rmlvo.RMLVO) []string {
	var args []string
	for _, f := range r.Fields() {
		if f.Value == "" {
			continue
		}
		key := f.Key
		if key == "option" {
			key = optionKey
		}
		args = append(args, prefix+key, f.Value)
	}
	return args
}
