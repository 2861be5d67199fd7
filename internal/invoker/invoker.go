// Package invoker runs external commands under a deadline and reports a
// structured Outcome instead of raw exec errors.
package invoker

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultOutputLimit = 1 << 20
	defaultWaitDelay   = 500 * time.Millisecond
)

// Runner is the contract the rest of the agent depends on.
type Runner interface {
	Invoke(ctx context.Context, args []string, timeout time.Duration) Outcome
}

// Invoker executes commands as child processes. It never retries.
type Invoker struct {
	logger      *zap.Logger
	outputLimit int
	waitDelay   time.Duration
}

func New(logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		logger:      logger.Named("invoker"),
		outputLimit: defaultOutputLimit,
		waitDelay:   defaultWaitDelay,
	}
}

// Invoke runs args[0] with args[1:] and waits at most timeout. The calling
// goroutine blocks; nothing else does.
func (i *Invoker) Invoke(ctx context.Context, args []string, timeout time.Duration) Outcome {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Outcome{Reason: ReasonTransport, Detail: "empty command"}
	}
	if timeout <= 0 {
		return Outcome{Reason: ReasonTransport, Detail: "timeout must be positive"}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	stdout := newCappedBuffer(i.outputLimit)
	stderr := newCappedBuffer(i.outputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = i.waitDelay
	configureProcessGroup(cmd)

	i.logger.Debug("invoking", zap.Strings("args", args), zap.Duration("timeout", timeout))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		out := Outcome{Reason: ReasonProcessNotFound, Detail: err.Error(), Duration: time.Since(start)}
		if ctx.Err() != nil {
			// Start refuses to run under a done context; that is the caller going away.
			out.Reason = ReasonTransport
			out.Detail = ctx.Err().Error()
		}
		i.logOutcome(args[0], out)
		return out
	}

	err := cmd.Wait()
	out := classify(ctx, execCtx, err, stdout.String(), stderr.String())
	out.Duration = time.Since(start)
	i.logOutcome(args[0], out)
	return out
}

func classify(parent, execCtx context.Context, err error, stdout, stderr string) Outcome {
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		// ErrWaitDelay means the process itself exited 0 but left its pipes open.
		return Outcome{Text: strings.TrimSpace(stdout)}
	}
	// exec.CommandContext surfaces "signal: killed" rather than the context error,
	// so the contexts decide first.
	if parent.Err() != nil {
		return Outcome{Reason: ReasonTransport, Detail: parent.Err().Error()}
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Reason: ReasonTimeout, Detail: "request timed out"}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = strings.TrimSpace(stdout)
		}
		return Outcome{Reason: ReasonNonZeroExit, ExitCode: exitErr.ExitCode(), Detail: detail}
	}
	return Outcome{Reason: ReasonTransport, Detail: err.Error()}
}

func (i *Invoker) logOutcome(binary string, out Outcome) {
	if out.OK() {
		i.logger.Debug("invocation succeeded",
			zap.String("binary", binary),
			zap.Duration("duration", out.Duration),
			zap.Int("output_bytes", len(out.Text)))
		return
	}
	i.logger.Debug("invocation failed",
		zap.String("binary", binary),
		zap.String("reason", string(out.Reason)),
		zap.Int("exit_code", out.ExitCode),
		zap.String("detail", out.Detail),
		zap.Duration("duration", out.Duration))
}
