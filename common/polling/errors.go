package polling

import (
	"errors"
	"strings"
)

var (
	ErrTimeout = errors.New("polling timed out")
	ErrAborted = errors.New("polling aborted")
)

var (
	// terminalPatterns are checked first, an error matching one of them is
	// never transient.
	terminalPatterns = []string{
		"unauthorized",
		"forbidden",
		"invalid signature",
		"invalid depositor",
		"rejected",
		"already claimed",
	}
	transientPatterns = []string{
		"not found",
		"not ready",
		"pending",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"too many requests",
		"service unavailable",
		"bad gateway",
		"eof",
	}
)

// TransientError marks an error as "not ready yet, retry later".
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// TerminalError marks an error as one that retrying can never fix.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return e.Err.Error()
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{err}
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{err}
}

// IsTerminalError returns whether polling must stop on the given error.
// Explicit wrappers take precedence over message matching.
func IsTerminalError(err error) bool {
	if err == nil {
		return false
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return true
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return false
	}
	return matches(err, terminalPatterns)
}

// IsTransientError returns whether the given error is worth another attempt.
// It is never true for an error IsTerminalError accepts.
func IsTransientError(err error) bool {
	if err == nil || IsTerminalError(err) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	return matches(err, transientPatterns)
}

func matches(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
