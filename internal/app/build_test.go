package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/antoniostano/questagent/internal/config"
	"github.com/antoniostano/questagent/internal/invoker"
	"github.com/antoniostano/questagent/internal/ledger"
)

// scriptedRunner answers by the bridge sub-command in the args.
type scriptedRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *scriptedRunner) Invoke(_ context.Context, args []string, _ time.Duration) invoker.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, args)
	r.mu.Unlock()

	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "canister id"):
		return invoker.Outcome{Text: "uxrrr-q7777-77774-qaaaq-cai\n"}
	case strings.Contains(joined, "getNextQuest"):
		return invoker.Outcome{Text: `(opt record { id = 1 : nat; title = "Intro to ICP"; rewardAmount = 50 : nat })`}
	case strings.Contains(joined, "getAllQuests"):
		return invoker.Outcome{Text: "(vec {})"}
	default:
		return invoker.Outcome{Reason: invoker.ReasonNonZeroExit, ExitCode: 1, Detail: "unknown method"}
	}
}

func testConfig() config.Config {
	return config.Config{
		MetricsNamespace:             "app_test",
		SessionInactivityTimeout:     time.Minute,
		DFXPath:                      "dfx",
		LedgerCanisterName:           "learnsphere",
		LedgerFallbackCanisterID:     ledger.DefaultFallbackCanisterID,
		LedgerNetwork:                "local",
		BridgeCallTimeout:            time.Second,
		BridgeResolveTimeout:         time.Second,
		PollInterval:                 time.Minute,
		CompletionMode:               "auto",
		CompletionMaxTokens:          1024,
		CompletionContextTokenBudget: 100,
	}
}

func TestBuildWiresDiscoveredTarget(t *testing.T) {
	reg := prometheus.NewRegistry()
	core, logs := observer.New(zapcore.WarnLevel)
	runner := &scriptedRunner{}

	res, err := Build(context.Background(), testConfig(), zap.New(core), Options{
		Runner:        runner,
		Registerer:    reg,
		Gatherer:      reg,
		SkipTokenizer: true,
	})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Equal(t, ledger.Target{CanisterID: "uxrrr-q7777-77774-qaaaq-cai", Network: "local", Source: ledger.SourceDiscovered}, res.Target)
	assert.Equal(t, res.Target, res.Ledger.Target())
	assert.Equal(t, "unavailable", res.CompletionMode)
	assert.Equal(t, 1, logs.FilterMessageSnippet("ASI_ONE_API_KEY").Len())

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()

	body := strings.NewReader(`{"sender":"agent1q","message":"what now?"}`)
	httpRes, err := http.Post(ts.URL+"/v1/chat/messages", "application/json", body)
	require.NoError(t, err)
	defer httpRes.Body.Close()
	var payload struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(httpRes.Body).Decode(&payload))
	require.Len(t, payload.Messages, 2)
	content := payload.Messages[1]["content"].([]any)
	assert.Equal(t, "I'm having trouble connecting to my AI assistant right now. Please try asking about LearnSphere quests again in a moment!",
		content[0].(map[string]any)["text"])
}

func TestBuildRejectsUnknownCompletionMode(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.CompletionMode = "gateway"

	_, err := Build(context.Background(), cfg, nil, Options{Runner: &scriptedRunner{}, Registerer: reg, Gatherer: reg, SkipTokenizer: true})

	assert.Error(t, err)
}

func TestBuildLedgerUsesOverride(t *testing.T) {
	cfg := testConfig()
	cfg.LedgerCanisterID = "aaaaa-aa"
	runner := &scriptedRunner{}

	client, target := BuildLedger(context.Background(), cfg, zap.NewNop(), runner, nil)

	assert.Equal(t, ledger.SourceOverride, target.Source)
	assert.Equal(t, "aaaaa-aa", client.Target().CanisterID)
	assert.Empty(t, runner.calls)
}
