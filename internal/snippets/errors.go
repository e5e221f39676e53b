package snippets

import "errors"

var (
	// ErrNotFound is returned when a snippet or namespace does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDefaultNamespace is returned when deleting the default namespace.
	ErrDefaultNamespace = errors.New("cannot delete default namespace")
)
