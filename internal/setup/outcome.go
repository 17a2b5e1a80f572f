package setup

import "errors"

// Outcome is the terminal state of a session, persisted as its outcome.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeDone             Outcome = "done"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeFailedBootstrap  Outcome = "failed_bootstrap"
	OutcomeAgentError       Outcome = "agent_error"
	OutcomeMaxTurnsExceeded Outcome = "max_turns_exceeded"
)

// Succeeded reports whether the session ended without a terminal error.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess || o == OutcomeDone
}

var (
	// ErrBootstrapFailed means the required tool was still absent after the
	// user reported installing it.
	ErrBootstrapFailed = errors.New("required tool still not detected after bootstrap")

	// ErrCancelled means the user cancelled or the input channel closed.
	ErrCancelled = errors.New("setup cancelled")

	// ErrMaxTurns means the turn budget ran out before a terminal action.
	ErrMaxTurns = errors.New("setup agent exceeded maximum turns")
)
