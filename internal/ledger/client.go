// Package ledger is the quest bridge: it drives the ledger CLI through the
// invoker and turns its replies into quest records.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/questagent/internal/invoker"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/quest"
	"github.com/antoniostano/questagent/internal/reliability"
)

const (
	MethodNextQuest  = "getNextQuest"
	MethodAllQuests  = "getAllQuests"
	MethodQuestCount = "getQuestCount"
	MethodQuestByID  = "getQuestById"
)

type Config struct {
	BinaryPath  string
	CallTimeout time.Duration
	// MaxRetries bounds extra attempts after a retryable failure. Every
	// operation here is a read-only query, so retrying is always safe.
	MaxRetries int
	RetryBase  time.Duration
	RetryCap   time.Duration
}

// Client performs quest queries against a fixed Target. It holds no mutable
// state and is safe for concurrent use; each call spawns its own process.
type Client struct {
	runner  invoker.Runner
	target  Target
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewClient(runner invoker.Runner, target Target, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		runner:  runner,
		target:  target,
		cfg:     cfg,
		logger:  logger.Named("ledger"),
		metrics: metrics,
	}
}

func (c *Client) Target() Target {
	return c.target
}

// FetchNextQuest returns the next quest, or false when the ledger has none.
func (c *Client) FetchNextQuest(ctx context.Context) (quest.Quest, bool, error) {
	raw, err := c.call(ctx, MethodNextQuest, "()")
	if err != nil {
		return quest.Quest{}, false, err
	}
	q, ok := quest.ParseQuest(raw)
	return q, ok, nil
}

// FetchAllQuestsSummary returns the whole catalog as one descriptive line.
func (c *Client) FetchAllQuestsSummary(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, MethodAllQuests, "()")
	if err != nil {
		return "", err
	}
	return quest.ParseQuestSummary(raw), nil
}

func (c *Client) QuestCount(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, MethodQuestCount, "()")
	if err != nil {
		return 0, err
	}
	n, ok := quest.ParseNat(raw)
	if !ok {
		return 0, fmt.Errorf("ledger %s: unexpected reply %q", MethodQuestCount, raw)
	}
	return n, nil
}

func (c *Client) QuestByID(ctx context.Context, id uint64) (quest.Quest, bool, error) {
	raw, err := c.call(ctx, MethodQuestByID, "("+strconv.FormatUint(id, 10)+")")
	if err != nil {
		return quest.Quest{}, false, err
	}
	q, ok := quest.ParseQuest(raw)
	return q, ok, nil
}

func (c *Client) call(ctx context.Context, method, arg string) (string, error) {
	args := withNetwork([]string{binaryOrDefault(c.cfg.BinaryPath), "canister", "call", c.target.CanisterID, method, arg}, c.target.Network)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.ObserveBridgeRetry(method)
			if err := reliability.Sleep(ctx, reliability.ExponentialBackoff(attempt-1, c.cfg.RetryBase, c.cfg.RetryCap)); err != nil {
				break
			}
		}

		attempts++
		out := c.runner.Invoke(ctx, args, c.cfg.CallTimeout)
		c.metrics.ObserveBridgeCall(method, outcomeLabel(out), out.Duration)
		if out.OK() {
			c.logger.Debug("bridge call succeeded", zap.String("method", method), zap.Int("attempt", attempts))
			return out.Text, nil
		}

		lastErr = out.Err()
		c.logger.Warn("bridge call failed",
			zap.String("method", method),
			zap.Int("attempt", attempts),
			zap.String("reason", string(out.Reason)),
			zap.String("detail", out.Detail))
		if !reliability.IsRetryableInvocation(lastErr) {
			break
		}
	}
	return "", &Error{Method: method, Attempts: attempts, Err: lastErr}
}

func outcomeLabel(out invoker.Outcome) string {
	if out.OK() {
		return "ok"
	}
	return string(out.Reason)
}
