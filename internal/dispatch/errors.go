package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a handler's output does not resolve to a
	// usable directory
	ErrNotFound = errors.New("dynamic route not found")
	// ErrForbidden is returned when HANDLE exists but is not executable
	ErrForbidden = errors.New("handler is not executable")
	// ErrHandlerExecution is matched by every *ExecError
	ErrHandlerExecution = errors.New("handler execution failed")
	// ErrTooManyHops is returned when a chain of handlers exceeds the
	// configured depth
	ErrTooManyHops = errors.New("too many chained handlers")
)

// ExecError describes a handler that could not be started, timed out, exited
// with a nonzero status or printed nothing
type ExecError struct {
	Handler  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("handler %q exited with status %d", e.Handler, e.ExitCode)
	}

	return fmt.Sprintf("handler %q: %v", e.Handler, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func (e *ExecError) Is(target error) bool {
	return target == ErrHandlerExecution
}
