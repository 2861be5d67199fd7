package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/antoniostano/questagent/internal/invoker"
)

type fakeRunner struct {
	mu       sync.Mutex
	outcomes []invoker.Outcome
	calls    [][]string
	timeouts []time.Duration
}

func (r *fakeRunner) Invoke(_ context.Context, args []string, timeout time.Duration) invoker.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), args...))
	r.timeouts = append(r.timeouts, timeout)
	if len(r.outcomes) == 0 {
		return invoker.Outcome{Reason: invoker.ReasonTransport, Detail: "no scripted outcome"}
	}
	out := r.outcomes[0]
	if len(r.outcomes) > 1 {
		r.outcomes = r.outcomes[1:]
	}
	return out
}

func (r *fakeRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func ok(text string) invoker.Outcome {
	return invoker.Outcome{Text: text}
}

func fail(reason invoker.Reason, detail string) invoker.Outcome {
	return invoker.Outcome{Reason: reason, Detail: detail}
}
