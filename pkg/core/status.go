package core

import (
	"errors"
	"fmt"
)

// StepStatus represents the execution status of a scenario step
type StepStatus int

const (
	StatusRunning StepStatus = iota // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected element didn't appear)
	StatusErrored                   // Unexpected error (driver, connection)
	StatusSkipped                   // Not reached because an earlier step failed
	StatusWarned                    // Best-effort step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// MarshalText lets StepStatus appear by name in JSON manifests.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for st := StatusRunning; st <= StatusWarned; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // WDA connection lost
	ErrCategoryApp                             // App not running
	ErrCategoryConfig                          // Invalid configuration
	ErrCategoryState                           // Screen state could not be classified
	ErrCategoryAlert                           // System alert left unhandled
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryState:
		return "state"
	case ErrCategoryAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// StatusForError maps a step error to the status recorded for it.
func StatusForError(err error) StepStatus {
	if err == nil {
		return StatusPassed
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Category {
		case ErrCategoryAssertion, ErrCategoryState, ErrCategoryTimeout:
			return StatusFailed
		}
	}
	return StatusErrored
}
