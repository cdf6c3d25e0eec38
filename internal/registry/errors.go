package registry

import "fmt"

// ConfigurationError reports an invalid filter combination.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// ResolutionError reports a registry name that is neither an existing file
// nor present under the rules directory.
type ResolutionError struct {
	Name string
	Path string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve registry %q (tried %s)", e.Name, e.Path)
}
