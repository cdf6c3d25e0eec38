// Command keymapcheck compiles every RMLVO combination of an
// xkeyboard-config registry and reports the failures.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/keymapcheck/internal/cli"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)))
}
