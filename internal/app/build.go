package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antoniostano/questagent/internal/agent"
	"github.com/antoniostano/questagent/internal/completion"
	"github.com/antoniostano/questagent/internal/config"
	"github.com/antoniostano/questagent/internal/httpapi"
	"github.com/antoniostano/questagent/internal/invoker"
	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/poller"
	"github.com/antoniostano/questagent/internal/session"
)

const budgetLoadTimeout = 5 * time.Second

// Options overrides process-wide collaborators, mainly for tests.
type Options struct {
	Runner     invoker.Runner
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// SkipTokenizer forces the heuristic context budget.
	SkipTokenizer bool
}

type BuildResult struct {
	Config         config.Config
	Target         ledger.Target
	Ledger         *ledger.Client
	API            *httpapi.Server
	Sessions       *session.Manager
	Orchestrator   *agent.Orchestrator
	Poller         *poller.Poller
	Metrics        *observability.Metrics
	CompletionMode string

	// Cleanup should be called on shutdown.
	Cleanup func() error
}

// BuildLedger resolves the target once and returns a bridge client bound to it.
// It is the part of Build the one-shot CLI commands need.
func BuildLedger(ctx context.Context, cfg config.Config, logger *zap.Logger, runner invoker.Runner, metrics *observability.Metrics) (*ledger.Client, ledger.Target) {
	if runner == nil {
		runner = invoker.New(logger)
	}
	target := ledger.ResolveTarget(ctx, runner, ledger.ResolveConfig{
		BinaryPath:   cfg.DFXPath,
		CanisterName: cfg.LedgerCanisterName,
		Override:     cfg.LedgerCanisterID,
		Fallback:     cfg.LedgerFallbackCanisterID,
		Network:      cfg.LedgerNetwork,
		Timeout:      cfg.BridgeResolveTimeout,
	}, logger)

	client := ledger.NewClient(runner, target, ledger.Config{
		BinaryPath:  cfg.DFXPath,
		CallTimeout: cfg.BridgeCallTimeout,
		MaxRetries:  cfg.BridgeMaxRetries,
	}, logger, metrics)
	return client, target
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var metrics *observability.Metrics
	if opts.Registerer != nil {
		metrics = observability.NewMetricsWith(cfg.MetricsNamespace, opts.Registerer, opts.Gatherer)
	} else {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	client, target := BuildLedger(ctx, cfg, logger, opts.Runner, metrics)

	completer, mode, err := completion.NewCompleter(completion.Config{
		Mode:      cfg.CompletionMode,
		APIKey:    cfg.CompletionAPIKey,
		BaseURL:   cfg.CompletionBaseURL,
		Model:     cfg.CompletionModel,
		MaxTokens: cfg.CompletionMaxTokens,
		Timeout:   cfg.CompletionTimeout,
	})
	if err != nil {
		return nil, err
	}
	if mode == "unavailable" {
		logger.Warn("ASI_ONE_API_KEY is not set; chat replies will fall back to the apology text")
	}

	var budget *completion.Budget
	if opts.SkipTokenizer {
		budget = completion.NewHeuristicBudget(cfg.CompletionContextTokenBudget)
	} else {
		budget = completion.LoadBudget(ctx, cfg.CompletionContextTokenBudget, "", budgetLoadTimeout)
	}
	if budget != nil && !budget.Precise() {
		logger.Info("context budget uses heuristic token counts")
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.ObserveSessionEvent("expired", sessions.ActiveCount())
		logger.Debug("session expired", zap.String("session_id", s.ID), zap.String("sender", s.Counterpart))
	})

	orchestrator := agent.NewOrchestrator(client, completer, sessions, metrics, logger, agent.Config{
		CompletionMode: mode,
		ContextBudget:  budget,
	})

	api := httpapi.New(cfg, httpapi.Dependencies{
		Chat:           orchestrator,
		Quests:         client,
		Sessions:       sessions,
		Target:         target,
		CompletionMode: mode,
		Metrics:        metrics,
		Logger:         logger,
	})

	p := poller.New(client, cfg.PollInterval, cfg.PollStartupDelay, logger, metrics)

	logger.Info("quest agent assembled",
		zap.String("canister_id", target.CanisterID),
		zap.String("canister_source", string(target.Source)),
		zap.String("network", target.Network),
		zap.String("completion_mode", mode))

	return &BuildResult{
		Config:         cfg,
		Target:         target,
		Ledger:         client,
		API:            api,
		Sessions:       sessions,
		Orchestrator:   orchestrator,
		Poller:         p,
		Metrics:        metrics,
		CompletionMode: mode,
		Cleanup: func() error {
			// Sync on a terminal's stderr fails with EINVAL on some platforms; nothing to report.
			_ = logger.Sync()
			return nil
		},
	}, nil
}
