package backend

import (
	"fmt"
	"strings"
)

// NotConfiguredError indicates the backend was constructed without the
// settings it needs. Every operation on an unconfigured backend returns
// it, naming exactly what is missing.
type NotConfiguredError struct {
	Missing []string
}

// Error implements the error interface.
func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("backend disabled: missing settings: %s", strings.Join(e.Missing, ", "))
}

// FileNotFoundError indicates the requested file does not exist in the
// project.
type FileNotFoundError struct {
	Project string
	Path    string
}

// Error implements the error interface.
func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: project=%q path=%q", e.Project, e.Path)
}
