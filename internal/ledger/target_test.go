package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/antoniostano/questagent/internal/invoker"
)

func TestResolveTargetUsesOverrideWithoutInvoking(t *testing.T) {
	r := &fakeRunner{}

	got := ResolveTarget(context.Background(), r, ResolveConfig{Override: " aaaaa-aa "}, zap.NewNop())

	assert.Equal(t, Target{CanisterID: "aaaaa-aa", Network: NetworkLocal, Source: SourceOverride}, got)
	assert.Empty(t, r.Calls())
}

func TestResolveTargetDiscoversID(t *testing.T) {
	r := &fakeRunner{outcomes: []invoker.Outcome{ok("uxrrr-q7777-77774-qaaaq-cai")}}

	got := ResolveTarget(context.Background(), r, ResolveConfig{BinaryPath: "dfx", Network: "ic", Timeout: 10 * time.Second}, nil)

	assert.Equal(t, Target{CanisterID: "uxrrr-q7777-77774-qaaaq-cai", Network: "ic", Source: SourceDiscovered}, got)
	assert.Equal(t, [][]string{{"dfx", "canister", "id", "learnsphere", "--network", "ic"}}, r.Calls())
	assert.Equal(t, []time.Duration{10 * time.Second}, r.timeouts)
}

func TestResolveTargetFallsBackOnEveryFailure(t *testing.T) {
	failures := []invoker.Outcome{
		fail(invoker.ReasonProcessNotFound, "executable file not found"),
		fail(invoker.ReasonTimeout, "request timed out"),
		fail(invoker.ReasonNonZeroExit, "Cannot find canister id"),
		fail(invoker.ReasonTransport, "broken pipe"),
		ok("   "),
	}
	for _, out := range failures {
		core, logs := observer.New(zapcore.WarnLevel)
		r := &fakeRunner{outcomes: []invoker.Outcome{out}}

		got := ResolveTarget(context.Background(), r, ResolveConfig{}, zap.New(core))

		assert.Equal(t, DefaultFallbackCanisterID, got.CanisterID, "reason %q", out.Reason)
		assert.Equal(t, SourceFallback, got.Source)
		assert.Equal(t, 1, logs.FilterMessageSnippet("falling back").Len())
	}
}

func TestResolveTargetCustomFallback(t *testing.T) {
	r := &fakeRunner{outcomes: []invoker.Outcome{fail(invoker.ReasonTimeout, "")}}

	got := ResolveTarget(context.Background(), r, ResolveConfig{Fallback: "rrkah-fqaaa-aaaaa-aaaaq-cai", CanisterName: "quests"}, nil)

	assert.Equal(t, "rrkah-fqaaa-aaaaa-aaaaq-cai", got.CanisterID)
	assert.Equal(t, []string{"dfx", "canister", "id", "quests"}, r.Calls()[0])
}
