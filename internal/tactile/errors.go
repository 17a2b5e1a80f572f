package tactile

import "fmt"

// ViolationKind identifies which allowlist rejected an action.
type ViolationKind string

const (
	ViolationCommand ViolationKind = "command"
	ViolationPath    ViolationKind = "path"
)

// ViolationError is returned when an action falls outside the sandbox. No
// process was spawned and nothing was written.
type ViolationError struct {
	Kind ViolationKind
	// Subject is the rejected command name or the resolved path.
	Subject string
}

func (e *ViolationError) Error() string {
	if e.Kind == ViolationPath {
		return fmt.Sprintf("Write path '%s' is not in allowed directories", e.Subject)
	}
	return fmt.Sprintf("Command '%s' is not in the allowlist", e.Subject)
}

// ToolFailureError describes an allowlisted command that could not be run.
// A command that runs and exits non-zero is not an error; its ExecutionResult
// carries the exit code.
type ToolFailureError struct {
	Binary string
	Err    error
}

func (e *ToolFailureError) Error() string {
	return fmt.Sprintf("failed to execute '%s': %v", e.Binary, e.Err)
}

func (e *ToolFailureError) Unwrap() error { return e.Err }
