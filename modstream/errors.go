package modstream

import (
	"fmt"

	"github.com/arloliu/pdbgen/format"
)

// Error reports a module whose debug information could not be transformed.
// Kind is the offending symbol kind, or 0 when the failure is not tied to a
// symbol record.
type Error struct {
	Module int
	Path   string
	Kind   format.SymbolKind
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("module %d (%s): %v", e.Module, e.Path, e.Err)
	}

	return fmt.Sprintf("module %d (%s): %s: %v", e.Module, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
