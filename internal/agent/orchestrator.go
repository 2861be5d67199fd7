// Package agent answers chat messages about the quest catalog. It acknowledges
// each message, ends the session on a closing phrase, and otherwise asks the
// completion collaborator for a reply grounded in live quest context.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/questagent/internal/completion"
	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/policy"
	"github.com/antoniostano/questagent/internal/protocol"
	"github.com/antoniostano/questagent/internal/quest"
	"github.com/antoniostano/questagent/internal/session"
)

// QuestSource is the read side of the quest bridge the orchestrator needs.
type QuestSource interface {
	FetchNextQuest(ctx context.Context) (quest.Quest, bool, error)
	FetchAllQuestsSummary(ctx context.Context) (string, error)
}

// Emit delivers one outbound protocol value to the counterpart.
type Emit = func(msg any) error

type Config struct {
	// CompletionMode labels completion failures in metrics.
	CompletionMode string
	// ContextBudget trims the quest summary; nil leaves it whole.
	ContextBudget *completion.Budget
	// SendTimeout bounds a blocking write to a connection's outbound channel.
	SendTimeout time.Duration
}

type Orchestrator struct {
	quests    QuestSource
	completer completion.Completer
	sessions  *session.Manager
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       Config
}

func NewOrchestrator(
	quests QuestSource,
	completer completion.Completer,
	sessions *session.Manager,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = session.NewManager(0)
	}
	if cfg.CompletionMode == "" {
		cfg.CompletionMode = "unknown"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Orchestrator{
		quests:    quests,
		completer: completer,
		sessions:  sessions,
		metrics:   metrics,
		logger:    logger.Named("agent"),
		cfg:       cfg,
	}
}

func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// HandleMessage processes one inbound chat message. The acknowledgement is
// always emitted first; at most one reply follows it.
func (o *Orchestrator) HandleMessage(ctx context.Context, counterpart string, msg protocol.ChatMessage, emit Emit) error {
	o.metrics.ObserveChatMessage("inbound", string(protocol.TypeChatMessage))
	o.logger.Info("received chat message", zap.String("sender", counterpart), zap.String("msg_id", msg.MsgID))

	if err := o.emit(emit, protocol.NewAcknowledgement(msg.MsgID)); err != nil {
		return err
	}

	s, created := o.sessions.Open(counterpart)
	if created {
		o.metrics.ObserveSessionEvent("opened", o.sessions.ActiveCount())
	}

	text := msg.Text()
	o.logger.Info("user message",
		zap.String("sender", counterpart),
		zap.String("session_id", s.ID),
		zap.String("text", policy.LogSafe(text, policy.DefaultLogTextLimit)))

	if IsClosingPhrase(text) {
		o.endSession(counterpart, "closing_phrase")
		return o.emit(emit, protocol.NewTextMessage(FarewellText, true))
	}
	if text == "" && msg.EndsSession() {
		// Counterpart closed the session without saying anything; nothing to answer.
		o.endSession(counterpart, "counterpart_ended")
		return nil
	}

	reply := o.Reply(ctx, text)
	if msg.EndsSession() {
		o.endSession(counterpart, "counterpart_ended")
	}
	return o.emit(emit, protocol.NewTextMessage(reply, false))
}

// HandleAcknowledgement records a counterpart's acknowledgement of one of our messages.
func (o *Orchestrator) HandleAcknowledgement(counterpart string, ack protocol.ChatAcknowledgement) {
	o.metrics.ObserveChatMessage("inbound", string(protocol.TypeAcknowledgement))
	o.logger.Info("message acknowledged", zap.String("sender", counterpart), zap.String("msg_id", ack.AcknowledgedMsgID))
}

// Reply builds the quest context and asks the completer. It never fails:
// any completion error yields the apology text.
func (o *Orchestrator) Reply(ctx context.Context, text string) string {
	questBlock, summary := o.questContext(ctx)
	if o.completer == nil {
		o.metrics.ObserveCompletionError(o.cfg.CompletionMode)
		return ApologyText
	}

	reply, err := o.completer.Complete(ctx, completion.Request{
		System:   PersonaPrompt(),
		Context:  renderContext(questBlock, summary),
		UserText: text,
	})
	if err != nil {
		o.metrics.ObserveCompletionError(o.cfg.CompletionMode)
		o.logger.Error("completion failed", zap.String("mode", o.cfg.CompletionMode), zap.Error(err))
		return ApologyText
	}
	o.logger.Info("completion reply generated", zap.Int("chars", len(reply)))
	return reply
}

// questContext fetches both context sources concurrently. Failures degrade to
// fixed sentences, so neither goroutine returns an error.
func (o *Orchestrator) questContext(ctx context.Context) (questBlock, summary string) {
	if o.quests == nil {
		return QuestUnavailableText, SummaryUnavailable
	}

	var g errgroup.Group
	g.Go(func() error {
		questBlock = o.nextQuestBlock(ctx)
		return nil
	})
	g.Go(func() error {
		summary = o.summary(ctx)
		return nil
	})
	_ = g.Wait()
	return questBlock, summary
}

func (o *Orchestrator) nextQuestBlock(ctx context.Context) string {
	q, found, err := o.quests.FetchNextQuest(ctx)
	if err != nil {
		o.logger.Warn("next quest unavailable", zap.String("reason", string(ledger.Reason(err))), zap.Error(err))
		return QuestUnavailableText
	}
	if found && q.Unparsed() {
		o.logger.Debug("quest record had no recognisable fields", zap.String("raw", q.Raw))
	}
	if !found || !q.Usable() {
		return NoQuestText
	}
	return q.Block()
}

func (o *Orchestrator) summary(ctx context.Context) string {
	s, err := o.quests.FetchAllQuestsSummary(ctx)
	if err != nil {
		o.logger.Warn("quest summary unavailable", zap.String("reason", string(ledger.Reason(err))), zap.Error(err))
		return SummaryUnavailable
	}
	return o.cfg.ContextBudget.Trim(s)
}

func (o *Orchestrator) endSession(counterpart, event string) {
	if _, err := o.sessions.End(counterpart); err != nil && !errors.Is(err, session.ErrNotFound) {
		o.logger.Warn("end session failed", zap.String("sender", counterpart), zap.Error(err))
	}
	o.metrics.ObserveSessionEvent(event, o.sessions.ActiveCount())
	o.logger.Info("session ended", zap.String("sender", counterpart), zap.String("event", event))
}

func (o *Orchestrator) emit(emit Emit, msg any) error {
	if err := emit(msg); err != nil {
		return err
	}
	switch msg.(type) {
	case protocol.ChatAcknowledgement:
		o.metrics.ObserveChatMessage("outbound", string(protocol.TypeAcknowledgement))
	case protocol.ChatMessage:
		o.metrics.ObserveChatMessage("outbound", string(protocol.TypeChatMessage))
	}
	return nil
}

// RunConnection serves one counterpart connection until inbound closes or ctx
// ends. Each chat message is handled on its own goroutine, so a slow bridge
// call never blocks reading; all handlers finish before it returns.
func (o *Orchestrator) RunConnection(ctx context.Context, counterpart string, inbound <-chan any, outbound chan<- any) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	emit := func(msg any) error {
		return o.send(ctx, outbound, msg)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			switch msg := raw.(type) {
			case protocol.ChatMessage:
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := o.HandleMessage(ctx, counterpart, msg, emit); err != nil && ctx.Err() == nil {
						o.logger.Warn("reply not delivered", zap.String("sender", counterpart), zap.String("msg_id", msg.MsgID), zap.Error(err))
					}
				}()
			case protocol.ChatAcknowledgement:
				o.HandleAcknowledgement(counterpart, msg)
			default:
				o.logger.Debug("ignoring inbound value", zap.String("sender", counterpart))
			}
		}
	}
}

var errSendTimeout = errors.New("outbound send timed out")

func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) error {
	timer := time.NewTimer(o.cfg.SendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		o.metrics.ObserveSessionEvent("outbound_drop", o.sessions.ActiveCount())
		return errSendTimeout
	}
}
