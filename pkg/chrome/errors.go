package chrome

import (
	"errors"
	"fmt"
)

var (
	// ErrChromeNotFound means no compatible browser executable was located.
	ErrChromeNotFound = errors.New("chrome executable not found")
	// ErrStartupTimeout means the debugging endpoint never exposed a usable
	// page target within the startup deadline.
	ErrStartupTimeout = errors.New("timeout waiting for chrome to start")
	// ErrSessionClosed means the session was stopped before or during the call.
	ErrSessionClosed = errors.New("chrome session closed")
	// ErrConnectionLost means the devtools socket closed while a response or
	// event was still being awaited.
	ErrConnectionLost = errors.New("devtools connection lost")
	// ErrNoImageData means a capture command returned without image payload.
	ErrNoImageData = errors.New("no image data returned")
)

// ProtocolError is reported by the browser when a devtools command fails.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("devtools command %s failed [%d]: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("devtools command %s failed: %s", e.Method, e.Message)
}

// EvaluationError is raised when a script evaluated in the page throws.
type EvaluationError struct {
	Text      string
	Exception string
}

func (e *EvaluationError) Error() string {
	if e.Exception != "" {
		return fmt.Sprintf("page script threw: %s: %s", e.Text, e.Exception)
	}
	return fmt.Sprintf("page script threw: %s", e.Text)
}

// IsConnectionError returns true if the error indicates a lost connection.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}
