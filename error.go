package motorcan

import (
	"errors"
	"fmt"
	"time"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable reports whether err is free of an `unrecoverableError`
// anywhere in its chain.
func IsRecoverable(err error) bool {
	var u unrecoverableError
	return !errors.As(err, &u)
}

var (
	ErrSessionActive = errors.New("session already active")
	ErrNotRunning    = errors.New("session not running")
	ErrInvalidConfig = errors.New("invalid session config")
)

// TransportError is a failure to open, configure, read or write the serial
// device. It always faults the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FaultReason tells which threshold faulted the session.
type FaultReason int

const (
	FaultTimeout FaultReason = iota + 1
	FaultRxErrors
)

func (r FaultReason) String() string {
	switch r {
	case FaultTimeout:
		return "receive timeout"
	case FaultRxErrors:
		return "too many receive errors"
	default:
		return "unknown"
	}
}

// FaultError is surfaced when the receiver gives up on the link.
type FaultError struct {
	Reason   FaultReason
	Waited   time.Duration
	RxErrors uint64
}

func (e *FaultError) Error() string {
	switch e.Reason {
	case FaultTimeout:
		return fmt.Sprintf("fault: %s, no frame for %s", e.Reason, e.Waited)
	case FaultRxErrors:
		return fmt.Sprintf("fault: %s (%d)", e.Reason, e.RxErrors)
	}
	return "fault: " + e.Reason.String()
}
