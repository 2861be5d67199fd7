package ledger

import (
	"errors"
	"fmt"

	"github.com/antoniostano/questagent/internal/invoker"
)

// Error is returned by every bridge operation whose invocation failed. It wraps
// the last *invoker.Error, so errors.Is(err, invoker.ErrTimeout) works through it.
type Error struct {
	Method   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s failed after %d attempt(s): %v", e.Method, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason reports the invocation failure class behind err, or ReasonTransport
// when err did not come from the invoker.
func Reason(err error) invoker.Reason {
	var invErr *invoker.Error
	if errors.As(err, &invErr) {
		return invErr.Reason
	}
	return invoker.ReasonTransport
}
