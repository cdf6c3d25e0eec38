// Package report prints per-invocation results as YAML sequence items, or as
// JSON lines, so a whole run's output can be parsed back.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Format selects the per-result layout.
type Format string

const (
	// FormatFull prints a multi-line block including the command.
	FormatFull Format = "full"
	// FormatShort prints one flow-mapping line per result.
	FormatShort Format = "short"
	// FormatJSON prints one JSON object per line.
	FormatJSON Format = "json"
)

// Reporter routes results: failures always go to Err, successes go to Out
// only when Verbose is set.
type Reporter struct {
	Out     io.Writer
	Err     io.Writer
	Verbose bool
	Format  Format
}

// Report prints inv if its status calls for it.
func (r *Reporter) Report(inv *compiler.Invocation) error {
	w := r.Err
	if !inv.Failed() {
		if !r.Verbose {
			return nil
		}
		w = r.Out
	}

	var err error
	switch r.Format {
	case FormatShort:
		_, err = io.WriteString(w, Short(inv))
	case FormatJSON:
		err = json.NewEncoder(w).Encode(NewRecord(inv))
	default:
		_, err = io.WriteString(w, Full(inv))
	}
	return err
}

// Short renders inv on a single line:
//
//	- {rmlvo: {...}, status: 99, error: "..."}
func Short(inv *compiler.Invocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- {rmlvo: %s, status: %d", inv.RMLVO.FlowMap(), inv.ExitStatus)
	if inv.Error != "" {
		fmt.Fprintf(&b, ", error: %s", rmlvo.QuoteOrNull(strings.TrimSpace(inv.Error)))
	}
	b.WriteString("}\n")
	return b.String()
}

// Full renders inv as a multi-line block.
func Full(inv *compiler.Invocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- rmlvo: %s\n", inv.RMLVO.FlowMap())
	fmt.Fprintf(&b, "  cmd: %s\n", rmlvo.QuoteOrNull(inv.Command))
	fmt.Fprintf(&b, "  status: %d\n", inv.ExitStatus)
	if inv.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", rmlvo.QuoteOrNull(strings.TrimSpace(inv.Error)))
	}
	return b.String()
}

// Record is the JSON form of a result.
type Record struct {
	Rules   string  `json:"rules"`
	Model   string  `json:"model"`
	Layout  string  `json:"layout"`
	Variant *string `json:"variant"`
	Option  *string `json:"option"`
	Status  int     `json:"status"`
	Command string  `json:"cmd"`
	Error   string  `json:"error,omitempty"`
}

// NewRecord converts inv, keeping absent axes as null.
func NewRecord(inv *compiler.Invocation) Record {
	return Record{
		Rules:   inv.Rules,
		Model:   inv.Model,
		Layout:  inv.Layout,
		Variant: optional(inv.Variant),
		Option:  optional(inv.Option),
		Status:  inv.ExitStatus,
		Command: inv.Command,
		Error:   strings.TrimSpace(inv.Error),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
