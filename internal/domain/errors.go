package domain

import (
	"errors"
	"fmt"
)

const (
	// FallbackFailureMessage is shown when a failure carries no message.
	FallbackFailureMessage = "Analysis failed. Please try again."
	// PersistenceWarningMessage is shown when a result could not be saved.
	PersistenceWarningMessage = "Analysis complete, but it could not be saved to history."
	// CancelledMessage is shown when a run is torn down before it finishes.
	CancelledMessage = "Analysis cancelled."
)

var (
	// ErrValidation marks input rejected before any request is made.
	ErrValidation = errors.New("validation error")
	// ErrEmptyQuery is returned for empty or whitespace-only queries.
	ErrEmptyQuery = fmt.Errorf("%w: query must not be empty", ErrValidation)
	// ErrNotFound is returned when a history lookup has no match.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a history id is already in use or was used before.
	ErrDuplicateID = errors.New("history entry id already used")
	// ErrRunDiscarded is returned by a run superseded by a newer submission or a dispose.
	ErrRunDiscarded = errors.New("run superseded")
)

// RemoteFailure wraps a failed pipeline call.
type RemoteFailure struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RemoteFailure) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("pipeline failure (%d): %s", e.StatusCode, e.Message)
	case e.Message != "":
		return "pipeline failure: " + e.Message
	case e.Err != nil:
		return "pipeline failure: " + e.Err.Error()
	default:
		return "pipeline failure"
	}
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// PersistenceError reports that the durable store rejected a read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "history " + e.Op + " failed"
	}
	return fmt.Sprintf("history %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err wraps a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// FailureMessage extracts the text shown to the user for a failed run.
func FailureMessage(err error) string {
	if err == nil {
		return FallbackFailureMessage
	}
	var rf *RemoteFailure
	if errors.As(err, &rf) {
		if rf.Message != "" {
			return rf.Message
		}
		if rf.Err != nil && rf.Err.Error() != "" {
			return rf.Err.Error()
		}
		return FallbackFailureMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackFailureMessage
}
