package cmd

import "github.com/Iron-Ham/agentq/internal/errors"

// Exit codes returned by the agentq binary.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitNotFound covers a task missing from the expected partition and a
	// claim refused because dependencies have not completed. Workers treat
	// both as "try another task".
	ExitNotFound = 2
)

// ExitCode maps an error from Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsNotFound(err), errors.Is(err, errors.ErrDependenciesUnmet):
		return ExitNotFound
	default:
		return ExitFailure
	}
}
