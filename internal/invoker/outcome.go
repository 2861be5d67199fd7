package invoker

import (
	"errors"
	"fmt"
	"time"
)

// Reason classifies a failed invocation.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonProcessNotFound Reason = "process_not_found"
	ReasonNonZeroExit     Reason = "non_zero_exit"
	ReasonTimeout         Reason = "timeout"
	ReasonTransport       Reason = "transport_exception"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrNonZeroExit     = errors.New("non-zero exit")
	ErrTimeout         = errors.New("timed out")
	ErrTransport       = errors.New("transport exception")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonProcessNotFound:
		return ErrProcessNotFound
	case ReasonNonZeroExit:
		return ErrNonZeroExit
	case ReasonTimeout:
		return ErrTimeout
	case ReasonTransport:
		return ErrTransport
	default:
		return nil
	}
}

// Error is the failure side of an Outcome. It unwraps to one of the Err* sentinels.
type Error struct {
	Reason   Reason
	ExitCode int
	Detail   string
}

func (e *Error) Error() string {
	base := "invocation failed"
	if s := e.Reason.sentinel(); s != nil {
		base = s.Error()
	}
	if e.Reason == ReasonNonZeroExit {
		base = fmt.Sprintf("%s (code %d)", base, e.ExitCode)
	}
	if e.Detail == "" {
		return base
	}
	return base + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Reason.sentinel()
}

// Outcome is the result of one external invocation. It is either Ok with Text
// or failed with a Reason.
type Outcome struct {
	Text     string
	Reason   Reason
	ExitCode int
	Detail   string
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return o.Reason == ReasonNone
}

// Err returns nil for a successful outcome and an *Error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Reason: o.Reason, ExitCode: o.ExitCode, Detail: o.Detail}
}
