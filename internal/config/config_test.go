package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Full(t *testing.T) {
	p, err := Parse([]byte(`
root: /usr/share/xkeyboard-config-2
compiler: xkbcomp-to-xkbcommon
registries: [evdev, evdev.extras]
layout: us
variant: intl:dvorak
jobs: 16
chunksize: 4
output: /tmp/keymaps
compression: 6
verbose: true
tools:
  modern: /opt/bin/xkbcli-compile-keymap
env:
  XKB_LOG_LEVEL: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/usr/share/xkeyboard-config-2", p.Root)
	assert.Equal(t, "xkbcomp-to-xkbcommon", p.Compiler)
	assert.Equal(t, []string{"evdev", "evdev.extras"}, p.Registries)
	assert.Equal(t, "intl:dvorak", p.Variant)
	assert.Equal(t, 16, p.Jobs)
	assert.Equal(t, 4, p.ChunkSize)
	assert.Equal(t, 6, p.Compression)
	assert.True(t, p.Verbose)
	assert.Equal(t, "/opt/bin/xkbcli-compile-keymap", p.Tools.Modern)
	assert.Equal(t, map[string]string{"XKB_LOG_LEVEL": "debug"}, p.Env)
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Profile{}, p)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown compiler", "compiler: gcc"},
		{"zero jobs", "jobs: 0"},
		{"compression too high", "compression: 10"},
		{"unknown field", "colour: blue"},
		{"wrong type", "verbose: maybe"},
		{"non-string env", "env: {A: [1]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid profile")
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("jobs: [1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse profile")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compiler: modern\nsingle: true\n"), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "modern", p.Compiler)
	assert.True(t, p.Single)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
