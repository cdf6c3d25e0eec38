// Package config loads run profiles: YAML files holding the same settings as
// the command-line flags of "keymapcheck run", checked against an embedded
// CUE schema before use.
//
//	root: /usr/share/xkeyboard-config-2
//	compiler: xkbcommon
//	layout: us
//	variant: intl:dvorak
//	jobs: 16
//	output: /tmp/keymaps
//	compression: 6
//	tools:
//	  modern: /opt/xkbcommon/bin/xkbcli-compile-keymap
//	env:
//	  XKB_LOG_LEVEL: debug
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keymapcheck/internal/compiler"
)

//go:embed profile.cue
var schemaCUE string

// Profile mirrors the run flags. Zero values mean "not set".
type Profile struct {
	Root        string            `yaml:"root"`
	Compiler    string            `yaml:"compiler"`
	Registries  []string          `yaml:"registries"`
	Rules       string            `yaml:"rules"`
	Model       string            `yaml:"model"`
	Layout      string            `yaml:"layout"`
	Variant     string            `yaml:"variant"`
	Option      string            `yaml:"option"`
	Jobs        int               `yaml:"jobs"`
	ChunkSize   int               `yaml:"chunksize"`
	Output      string            `yaml:"output"`
	Compression int               `yaml:"compression"`
	Verbose     bool              `yaml:"verbose"`
	Short       bool              `yaml:"short"`
	Single      bool              `yaml:"single"`
	DB          string            `yaml:"db"`
	Tools       compiler.Tools    `yaml:"tools"`
	Env         map[string]string `yaml:"env"`
}

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte) (*Profile, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("profile.cue")).LookupPath(cue.ParsePath("#Profile"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("profile schema: %w", err)
	}

	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid profile: %s", cueerrors.Details(err, nil))
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid profile: %s", cueerrors.Details(err, nil))
	}
	return nil
}
