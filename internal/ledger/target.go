package ledger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/questagent/internal/invoker"
)

const (
	DefaultCanisterName       = "learnsphere"
	DefaultFallbackCanisterID = "br5f7-7uaaa-aaaaa-qaaca-cai"
	NetworkLocal              = "local"
)

type TargetSource string

const (
	SourceOverride   TargetSource = "override"
	SourceDiscovered TargetSource = "discovered"
	SourceFallback   TargetSource = "fallback"
)

// Target identifies the canister every bridge call addresses. It is resolved
// once at startup and never changes afterwards.
type Target struct {
	CanisterID string
	Network    string
	Source     TargetSource
}

type ResolveConfig struct {
	BinaryPath   string
	CanisterName string
	Override     string
	Fallback     string
	Network      string
	Timeout      time.Duration
}

// ResolveTarget picks the canister id: an explicit override wins, otherwise it
// asks the bridge (`canister id <name>`). Any failure degrades to the fallback
// id; resolution never fails.
func ResolveTarget(ctx context.Context, runner invoker.Runner, cfg ResolveConfig, logger *zap.Logger) Target {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ledger")

	network := strings.TrimSpace(cfg.Network)
	if network == "" {
		network = NetworkLocal
	}
	if id := strings.TrimSpace(cfg.Override); id != "" {
		logger.Info("using configured canister id", zap.String("canister_id", id), zap.String("network", network))
		return Target{CanisterID: id, Network: network, Source: SourceOverride}
	}

	fallback := strings.TrimSpace(cfg.Fallback)
	if fallback == "" {
		fallback = DefaultFallbackCanisterID
	}
	name := strings.TrimSpace(cfg.CanisterName)
	if name == "" {
		name = DefaultCanisterName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	args := withNetwork([]string{binaryOrDefault(cfg.BinaryPath), "canister", "id", name}, network)
	out := runner.Invoke(ctx, args, timeout)
	if out.OK() && strings.TrimSpace(out.Text) != "" {
		id := strings.TrimSpace(out.Text)
		logger.Info("found canister id", zap.String("canister", name), zap.String("canister_id", id), zap.String("network", network))
		return Target{CanisterID: id, Network: network, Source: SourceDiscovered}
	}

	detail := out.Detail
	if out.OK() {
		detail = "empty output"
	}
	logger.Warn("could not discover canister id, falling back to hardcoded id",
		zap.String("canister", name),
		zap.String("network", network),
		zap.String("reason", string(out.Reason)),
		zap.String("detail", detail),
		zap.String("fallback_id", fallback))
	return Target{CanisterID: fallback, Network: network, Source: SourceFallback}
}

func binaryOrDefault(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	return "dfx"
}

func withNetwork(args []string, network string) []string {
	if network == "" || network == NetworkLocal {
		return args
	}
	return append(args, "--network", network)
}
