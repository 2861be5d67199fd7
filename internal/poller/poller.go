// Package poller periodically checks the ledger for the next quest and logs
// what it finds. It never talks to chat counterparts.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/quest"
)

const (
	DefaultInterval     = 5 * time.Minute
	DefaultStartupDelay = 3 * time.Second
)

type Result string

const (
	ResultQuest   Result = "quest"
	ResultNoQuest Result = "no_quest"
	ResultError   Result = "error"
)

type NextQuestSource interface {
	FetchNextQuest(ctx context.Context) (quest.Quest, bool, error)
}

type Poller struct {
	source       NextQuestSource
	interval     time.Duration
	startupDelay time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
}

func New(source NextQuestSource, interval, startupDelay time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if startupDelay < 0 {
		startupDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:       source,
		interval:     interval,
		startupDelay: startupDelay,
		logger:       logger.Named("poller"),
		metrics:      metrics,
	}
}

// Run waits the startup delay, checks once, then checks on every tick until
// ctx ends. Checks never overlap.
func (p *Poller) Run(ctx context.Context) error {
	if p.startupDelay > 0 {
		timer := time.NewTimer(p.startupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	p.Check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check performs one poll and reports what it saw.
func (p *Poller) Check(ctx context.Context) Result {
	p.logger.Info("performing periodic quest check")

	q, found, err := p.source.FetchNextQuest(ctx)
	result := ResultNoQuest
	switch {
	case err != nil:
		result = ResultError
		p.logger.Error("failed to query for quests",
			zap.String("reason", string(ledger.Reason(err))),
			zap.Error(err))
	case found && q.Usable():
		result = ResultQuest
		p.logger.Info("current quest available",
			zap.String("title", q.TitleOr("")),
			zap.String("reward", q.RewardOr("Unknown")+" tokens"))
	default:
		if found && q.Unparsed() {
			p.logger.Debug("quest record had no recognisable fields", zap.String("raw", q.Raw))
		}
		p.logger.Info("no new quests at the moment")
	}
	p.metrics.ObservePollResult(string(result))
	return result
}
