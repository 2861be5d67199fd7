package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/antoniostano/questagent/internal/invoker"
	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/quest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedSource struct {
	raw   string
	err   error
	calls atomic.Int32
}

func (s *scriptedSource) FetchNextQuest(context.Context) (quest.Quest, bool, error) {
	s.calls.Add(1)
	if s.err != nil {
		return quest.Quest{}, false, s.err
	}
	q, ok := quest.ParseQuest(s.raw)
	return q, ok, nil
}

func TestCheckLogsUsableQuest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith("poller_test", reg, reg)
	src := &scriptedSource{raw: `(opt record { title = "Intro to ICP"; rewardAmount = 1_000 : nat })`}
	p := New(src, time.Minute, 0, zap.New(core), metrics)

	assert.Equal(t, ResultQuest, p.Check(context.Background()))

	entries := logs.FilterMessage("current quest available").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Intro to ICP", fields["title"])
	assert.Equal(t, "1000 tokens", fields["reward"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PollResults.WithLabelValues("quest")))
}

func TestCheckNoQuestAndUnusable(t *testing.T) {
	for _, raw := range []string{"(null)", "(opt record { id = 3 : nat })"} {
		core, logs := observer.New(zapcore.InfoLevel)
		p := New(&scriptedSource{raw: raw}, time.Minute, 0, zap.New(core), nil)

		assert.Equal(t, ResultNoQuest, p.Check(context.Background()), raw)
		assert.Equal(t, 1, logs.FilterMessage("no new quests at the moment").Len())
	}
}

func TestCheckLogsRawTextOfUnparsedRecord(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	raw := "(opt record { mystery = blob \"\\00\" })"
	p := New(&scriptedSource{raw: raw}, time.Minute, 0, zap.New(core), nil)

	assert.Equal(t, ResultNoQuest, p.Check(context.Background()))

	entries := logs.FilterMessage("quest record had no recognisable fields").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, raw, entries[0].ContextMap()["raw"])
}

func TestCheckLogsBridgeError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	err := &ledger.Error{Method: ledger.MethodNextQuest, Attempts: 2, Err: &invoker.Error{Reason: invoker.ReasonTimeout}}
	p := New(&scriptedSource{err: err}, time.Minute, 0, zap.New(core), nil)

	assert.Equal(t, ResultError, p.Check(context.Background()))

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "timeout", entries[0].ContextMap()["reason"])
}

func TestRunChecksAfterDelayThenPeriodically(t *testing.T) {
	src := &scriptedSource{raw: "(null)"}
	p := New(src, 20*time.Millisecond, 10*time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	src := &scriptedSource{raw: "(null)"}
	p := New(src, time.Hour, time.Hour, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
	assert.Zero(t, src.calls.Load())
}
