// Package rmlvo defines the five-axis keyboard configuration identifier
// (Rules, Model, Layout, Variant, Option) shared by every stage of the
// harness.
package rmlvo

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to the mandatory axes when left unset.
const (
	DefaultRules  = "evdev"
	DefaultModel  = "pc105"
	DefaultLayout = "us"
)

// RMLVO identifies one keymap configuration.
//
// An empty Variant or Option means the axis is absent. Absent axes are
// rendered as null, never as an empty string, and are omitted from
// compiler arguments.
type RMLVO struct {
	Rules   string
	Model   string
	Layout  string
	Variant string
	Option  string
}

// New builds a tuple, substituting defaults for empty mandatory fields.
func New(rules, model, layout, variant, option string) RMLVO {
	if rules == "" {
		rules = DefaultRules
	}
	if model == "" {
		model = DefaultModel
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return RMLVO{
		Rules:   rules,
		Model:   model,
		Layout:  layout,
		Variant: variant,
		Option:  option,
	}
}

// Field is a single named axis value, in display order.
type Field struct {
	Key   string
	Value string
}

// Fields returns the five axes in their canonical order.
func (r RMLVO) Fields() []Field {
	return []Field{
		{"rules", r.Rules},
		{"model", r.Model},
		{"layout", r.Layout},
		{"variant", r.Variant},
		{"option", r.Option},
	}
}

// LayoutSpec returns layout[(variant)][+option].
func (r RMLVO) LayoutSpec() string {
	var b strings.Builder
	b.WriteString(r.Layout)
	if r.Variant != "" {
		b.WriteString("(")
		b.WriteString(r.Variant)
		b.WriteString(")")
	}
	if r.Option != "" {
		b.WriteString("+")
		b.WriteString(r.Option)
	}
	return b.String()
}

// String returns a compact identifier for log lines.
func (r RMLVO) String() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", r.Rules, r.Model, r.Layout, r.Variant, r.Option)
}

// FlowMap renders the tuple as a single-line YAML flow mapping:
//
//	{rules: "evdev", model: "pc105", layout: "us", variant: null, option: null}
func (r RMLVO) FlowMap() string {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range r.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(QuoteOrNull(f.Value))
	}
	b.WriteString("}")
	return b.String()
}

// QuoteOrNull double-quotes s, or returns null when s is empty.
// The quoting is a subset of YAML double-quoted scalars.
func QuoteOrNull(s string) string {
	if s == "" {
		return "null"
	}
	return strconv.Quote(s)
}

type flowMap struct {
	Rules   *string `yaml:"rules"`
	Model   *string `yaml:"model"`
	Layout  *string `yaml:"layout"`
	Variant *string `yaml:"variant"`
	Option  *string `yaml:"option"`
}

// ParseFlowMap decodes the output of FlowMap.
// Mandatory fields must be present and non-null.
func ParseFlowMap(s string) (RMLVO, error) {
	var m flowMap
	if err := yaml.Unmarshal([]byte(s), &m); err != nil {
		return RMLVO{}, fmt.Errorf("parse rmlvo: %w", err)
	}
	if m.Rules == nil || m.Model == nil || m.Layout == nil {
		return RMLVO{}, fmt.Errorf("parse rmlvo: missing mandatory field in %q", s)
	}
	return RMLVO{
		Rules:   *m.Rules,
		Model:   *m.Model,
		Layout:  *m.Layout,
		Variant: deref(m.Variant),
		Option:  deref(m.Option),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
