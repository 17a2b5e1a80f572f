package agent

import (
	"fmt"
	"time"
)

// TimeoutError indicates the reasoning step exceeded its wall-clock budget
// and was killed.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("reasoning step timed out after %v", e.After)
}

// TransportError indicates the reasoning step could not be run or exited
// unsuccessfully.
type TransportError struct {
	// ExitCode is -1 when the process never started.
	ExitCode int
	// Stderr holds at most the first 500 characters of diagnostic output.
	Stderr string
	Err    error
}

func (e *TransportError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("failed to run reasoning step: %v", e.Err)
	}
	return fmt.Sprintf("reasoning step failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates the reply did not match the turn schema.
type ParseError struct {
	// Snippet holds at most the first 200 characters of the raw reply.
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse agent response: %v\nRaw output: %s", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }
