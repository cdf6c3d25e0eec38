package registry

import (
	"os"
	"path/filepath"
	"strings"
)

// RulesDir is the subdirectory of the data root holding registry files.
const RulesDir = "rules"

// Resolve maps a registry argument to a file path.
//
// An existing regular file is used as-is. Anything else is treated as a bare
// rule-set name and looked up as <root>/rules/<name>.xml; a name that already
// ends in .xml is not suffixed again, and suffixes such as ".extras" are kept
// ("evdev.extras" resolves to rules/evdev.extras.xml).
func Resolve(root, name string) (string, error) {
	if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
		return name, nil
	}

	file := name
	if !strings.HasSuffix(file, ".xml") {
		file += ".xml"
	}
	path := filepath.Join(root, RulesDir, file)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path, nil
	}
	return "", &ResolutionError{Name: name, Path: path}
}
