package types

import (
	"errors"
	"fmt"
)

// ErrNoHandler is returned when no stage handler covers the current state
// and requested action.
var ErrNoHandler = errors.New("no handler for current state")

// ErrPipelineNotFound is returned by accessors when no pipeline context has
// been started or loaded.
var ErrPipelineNotFound = errors.New("pipeline not found")

// InvalidTransitionError reports an action that is not legal in the current
// state. The context is left untouched.
type InvalidTransitionError struct {
	State  State
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %s is not legal in state %s", e.Action, e.State)
}

// InvalidRollbackError reports a rejected rollback target: one that never
// appeared in the pipeline's history, or one whose rolled-back context would
// violate the tag invariants.
type InvalidRollbackError struct {
	Target State
	Reason string
}

func (e *InvalidRollbackError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid rollback to state %s: %s", e.Target, e.Reason)
	}
	return fmt.Sprintf("invalid rollback: state %s never appeared in history", e.Target)
}

// TransientError wraps a network-class failure that is safe to retry.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is retryable at the caller boundary.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ProviderJobError reports that the provider itself marked a job as failed.
// This is fatal: the job will not recover by polling again.
type ProviderJobError struct {
	JobID   string
	Message string
}

func (e *ProviderJobError) Error() string {
	return fmt.Sprintf("provider reported job %s failed: %s", e.JobID, e.Message)
}

// PollTimeoutError reports that the poll loop exhausted its attempt ceiling.
// JobID is preserved so a resumed run can continue polling the same job.
type PollTimeoutError struct {
	JobID    string
	Attempts int
	Cause    error
}

func (e *PollTimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("polling job %s timed out after %d attempts: %v", e.JobID, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("polling job %s timed out after %d attempts", e.JobID, e.Attempts)
}

func (e *PollTimeoutError) Unwrap() error {
	return e.Cause
}

// ResponseValidationError reports a malformed provider response, naming the
// offending field path.
type ResponseValidationError struct {
	Provider string
	Field    string
	Message  string
}

func (e *ResponseValidationError) Error() string {
	return fmt.Sprintf("invalid %s response: field %s: %s", e.Provider, e.Field, e.Message)
}
