// Package compiler turns one RMLVO tuple into a compiled keymap by driving the
// external keymap compilers, and classifies what they returned.
//
// Four strategies are available:
//
//   - xkbcomp: setxkbmap -print | xkbcomp, the legacy X11 pipeline
//   - xkbcommon: xkbcli-compile-keymap, the modern compiler
//   - xkbcomp-to-xkbcommon: the legacy keymap fed back into the modern compiler
//   - xkbcommon-to-xkbcomp: the modern keymap fed back into xkbcomp
//
// The chained strategies compose two single-stage strategies. A failing first
// stage skips the second; otherwise the second stage's result replaces the
// first.
//
// # Status codes
//
//   - 0: compiled successfully
//   - 77: not run yet (skipped)
//   - 90: resolver could not reach a display, the environment is unavailable
//   - 99: the modern compiler reported an unrecognized keysym
//   - 127: an external tool could not be started
//   - anything else: the failing tool's own exit code
//
// All subprocesses run through a Runner, configured explicitly with the
// environment each child receives.
package compiler
