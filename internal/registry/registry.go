package registry

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Layout is a layout name with the variants to enumerate for it.
// An empty string in Variants stands for "no variant".
type Layout struct {
	Name     string
	Variants []string
}

// Snapshot is the merged vocabulary of one or more registry files.
type Snapshot struct {
	Models  []string
	Layouts []Layout
	Options []string
}

// Filters restrict enumeration to explicit values. An empty string or "*"
// leaves the axis open.
type Filters struct {
	Rules    string
	Model    string
	Layout   string
	Variants []string
	Option   string
}

// Validate rejects filter combinations that have no meaning.
func (f Filters) Validate() error {
	if len(f.Variants) > 0 && isWildcard(f.Layout) {
		return &ConfigurationError{Message: "a variant filter requires a layout filter"}
	}
	return nil
}

// RulesName returns the rule-set name with the default applied.
func (f Filters) RulesName() string {
	if isWildcard(f.Rules) {
		return rmlvo.DefaultRules
	}
	return f.Rules
}

func isWildcard(s string) bool {
	return s == "" || s == "*"
}

// Load resolves every path against root, parses it and merges the results.
// With no paths the rule-set name from filters is used.
func Load(root string, paths []string, filters Filters) (*Snapshot, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = []string{filters.RulesName()}
	}

	files := make([]*document, 0, len(paths))
	for _, p := range paths {
		path, err := Resolve(root, p)
		if err != nil {
			return nil, err
		}
		doc, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, doc)
	}

	return build(files, filters), nil
}

// Parse builds a snapshot from a single in-memory registry document.
func Parse(data []byte, filters Filters) (*Snapshot, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	return build([]*document{doc}, filters), nil
}

func build(docs []*document, f Filters) *Snapshot {
	s := &Snapshot{}

	if isWildcard(f.Model) {
		for _, d := range docs {
			s.Models = append(s.Models, d.models()...)
		}
	} else {
		s.Models = []string{f.Model}
	}

	if isWildcard(f.Option) {
		for _, d := range docs {
			s.Options = append(s.Options, d.options()...)
		}
	} else {
		s.Options = []string{f.Option}
	}

	switch {
	case isWildcard(f.Layout):
		for _, d := range docs {
			s.Layouts = append(s.Layouts, d.layouts()...)
		}
	case len(f.Variants) > 0:
		s.Layouts = []Layout{{Name: f.Layout, Variants: append([]string(nil), f.Variants...)}}
	default:
		for _, d := range docs {
			for _, l := range d.layouts() {
				if l.Name == f.Layout {
					s.Layouts = append(s.Layouts, l)
				}
			}
		}
		if len(s.Layouts) == 0 {
			s.Layouts = []Layout{{Name: f.Layout, Variants: []string{""}}}
		}
	}

	if len(s.Models) == 0 {
		s.Models = []string{rmlvo.DefaultModel}
	}
	if len(s.Layouts) == 0 {
		s.Layouts = []Layout{{Name: rmlvo.DefaultLayout, Variants: []string{""}}}
	}
	return s
}

type document struct {
	XMLName xml.Name      `xml:"xkbConfigRegistry"`
	Models  []configEntry `xml:"modelList>model"`
	Layouts []layoutEntry `xml:"layoutList>layout"`
	Groups  []groupEntry  `xml:"optionList>group"`
}

type configItem struct {
	Name string `xml:"name"`
}

type configEntry struct {
	ConfigItem configItem `xml:"configItem"`
}

type layoutEntry struct {
	ConfigItem configItem    `xml:"configItem"`
	Variants   []configEntry `xml:"variantList>variant"`
}

type groupEntry struct {
	ConfigItem configItem    `xml:"configItem"`
	Options    []configEntry `xml:"option"`
}

func parseFile(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func decode(data []byte) (*document, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &doc, nil
}

func (d *document) models() []string {
	out := make([]string, 0, len(d.Models))
	for _, m := range d.Models {
		if name := normalize(m.ConfigItem.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// layouts always lists "no variant" first.
func (d *document) layouts() []Layout {
	out := make([]Layout, 0, len(d.Layouts))
	for _, l := range d.Layouts {
		name := normalize(l.ConfigItem.Name)
		if name == "" {
			continue
		}
		variants := []string{""}
		for _, v := range l.Variants {
			if vn := normalize(v.ConfigItem.Name); vn != "" {
				variants = append(variants, vn)
			}
		}
		out = append(out, Layout{Name: name, Variants: variants})
	}
	return out
}

func (d *document) options() []string {
	var out []string
	for _, g := range d.Groups {
		for _, o := range g.Options {
			if name := normalize(o.ConfigItem.Name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
