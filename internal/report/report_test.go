package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keymapcheck/internal/compiler"
	"github.com/roach88/keymapcheck/internal/rmlvo"
)

func success() *compiler.Invocation {
	inv := compiler.NewInvocation(rmlvo.New("evdev", "pc105", "us", "intl", ""))
	inv.ExitStatus = 0
	inv.Command = "xkbcli-compile-keymap --include /data --rules evdev --model pc105 --layout us --variant intl --test"
	return inv
}

func keysymFailure() *compiler.Invocation {
	inv := compiler.NewInvocation(rmlvo.New("evdev", "pc105", "us", "", "grp:lwin_switch"))
	inv.ExitStatus = compiler.StatusUnrecognizedKeysym
	inv.Command = "xkbcli-compile-keymap --include /data --rules evdev --model pc105 --layout us --options grp:lwin_switch --test"
	inv.Error = `xkbcommon: WARNING: Unrecognized keysym "XF86Foo"`
	return inv
}

func compileFailure() *compiler.Invocation {
	inv := compiler.NewInvocation(rmlvo.New("evdev", "pc104", "de", "", ""))
	inv.ExitStatus = 1
	inv.Command = "setxkbmap -print -I /data -rules evdev -model pc104 -layout de | xkbcomp -I -I/data -xkb - -"
	inv.Error = "Error: line 3\nsyntax error\n"
	return inv
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestShort_Golden(t *testing.T) {
	out := Short(success()) + Short(keysymFailure()) + Short(compileFailure())
	golden(t).Assert(t, "short", []byte(out))
}

func TestFull_Golden(t *testing.T) {
	out := Full(success()) + Full(keysymFailure()) + Full(compileFailure())
	golden(t).Assert(t, "full", []byte(out))
}

func TestOutputIsYAML(t *testing.T) {
	for name, render := range map[string]func(*compiler.Invocation) string{
		"short": Short,
		"full":  Full,
	} {
		t.Run(name, func(t *testing.T) {
			var items []map[string]any
			doc := render(success()) + render(compileFailure())
			require.NoError(t, yaml.Unmarshal([]byte(doc), &items))
			require.Len(t, items, 2)
			assert.Equal(t, 0, items[0]["status"])
			assert.Equal(t, "Error: line 3\nsyntax error", items[1]["error"])

			tuple := items[0]["rmlvo"].(map[string]any)
			assert.Equal(t, "intl", tuple["variant"])
			assert.Nil(t, tuple["option"])
		})
	}
}

func TestReport_Routing(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		inv     *compiler.Invocation
		wantOut bool
		wantErr bool
	}{
		{"success quiet", false, success(), false, false},
		{"success verbose", true, success(), true, false},
		{"failure quiet", false, compileFailure(), false, true},
		{"failure verbose", true, keysymFailure(), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			r := &Reporter{Out: &out, Err: &errOut, Verbose: tt.verbose, Format: FormatShort}

			require.NoError(t, r.Report(tt.inv))
			assert.Equal(t, tt.wantOut, out.Len() > 0)
			assert.Equal(t, tt.wantErr, errOut.Len() > 0)
		})
	}
}

func TestReport_JSON(t *testing.T) {
	var errOut bytes.Buffer
	r := &Reporter{Err: &errOut, Format: FormatJSON}

	require.NoError(t, r.Report(keysymFailure()))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(errOut.Bytes(), &rec))
	assert.Equal(t, float64(99), rec["status"])
	assert.Nil(t, rec["variant"])
	assert.Equal(t, "grp:lwin_switch", rec["option"])
}
