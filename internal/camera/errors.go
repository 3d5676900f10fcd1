package camera

import (
	"errors"
	"fmt"
)

// StreamError is a failed camera operation with a stable code.
type StreamError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeInvalidSetup    = "INVALID_SETUP"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeCallFailed      = "CALL_FAILED"
	ErrCodePunchFailed     = "PUNCH_FAILED"
	ErrCodeNoTranscoder    = "NO_TRANSCODER"
	ErrCodeSpawnFailed     = "SPAWN_FAILED"
	ErrCodeSnapshotFailed  = "SNAPSHOT_FAILED"
)

// NewStreamError creates a new stream error
func NewStreamError(code, message string, cause error) *StreamError {
	return &StreamError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first StreamError in err's chain, or
// "" when there is none.
func ErrorCode(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
