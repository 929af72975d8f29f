package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrThreadBusy      = errors.New("thread is already executing a phase")

	// Workflow errors
	ErrToolNotPermitted        = errors.New("tool is not permitted in the current phase")
	ErrMissingJobID            = errors.New("no job id recorded for this thread")
	ErrIterationBudgetExceeded = errors.New("phase made no progress within its iteration budget")
	ErrExternalToolFailure     = errors.New("external tool call failed")
	ErrMismatchUnresolved      = errors.New("name mismatches remain after the correction limit")
	ErrUnknownPhase            = errors.New("no executor registered for phase")

	// Persistence errors
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
