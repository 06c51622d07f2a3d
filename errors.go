package srf01

import (
	"errors"
	"fmt"
)

// Sentinel errors for invalid inputs. These are raised before any byte is
// written to the bus; flaky hardware is reported through NoReading instead.
var (
	ErrInvalidAddress          = errors.New("invalid sensor address: use an integer between 1 and 16")
	ErrInvalidBroadcastAddress = errors.New("invalid sensor address: use an integer between 1 and 16, or 0 for broadcast")
	ErrInvalidUnit             = errors.New(`invalid range unit: use "cm" or "in"`)
	ErrInvalidBaudRate         = errors.New("invalid sensor baud rate: use 19200 or 38400")
	ErrBusClosed               = errors.New("bus is closed")
)

// Internal read-loop failures. Public read operations translate these into
// the NoReading sentinel.
var (
	errTimeout    = errors.New("communication timeout")
	errNoResponse = errors.New("no response from sensor")
)

// CommError wraps a transport-level write failure.
type CommError struct {
	Op  string // Operation that failed (e.g., "range", "burst")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}
