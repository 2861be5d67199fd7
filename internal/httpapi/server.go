package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/questagent/internal/config"
	"github.com/antoniostano/questagent/internal/ledger"
	"github.com/antoniostano/questagent/internal/observability"
	"github.com/antoniostano/questagent/internal/protocol"
	"github.com/antoniostano/questagent/internal/quest"
	"github.com/antoniostano/questagent/internal/session"
)

// ChatHandler is the session orchestrator as seen by the transport.
type ChatHandler interface {
	HandleMessage(ctx context.Context, counterpart string, msg protocol.ChatMessage, emit func(any) error) error
	RunConnection(ctx context.Context, counterpart string, inbound <-chan any, outbound chan<- any) error
}

// QuestReader is the read-only quest bridge.
type QuestReader interface {
	FetchNextQuest(ctx context.Context) (quest.Quest, bool, error)
	FetchAllQuestsSummary(ctx context.Context) (string, error)
	QuestCount(ctx context.Context) (uint64, error)
	QuestByID(ctx context.Context, id uint64) (quest.Quest, bool, error)
}

// SessionReader exposes session state for diagnostics.
type SessionReader interface {
	Get(sessionID string) (*session.Session, error)
	Current(counterpart string) (*session.Session, error)
}

type Dependencies struct {
	Chat           ChatHandler
	Quests         QuestReader
	Sessions       SessionReader
	Target         ledger.Target
	CompletionMode string
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

type Server struct {
	cfg      config.Config
	deps     Dependencies
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only connect from the same origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Agents and CLI clients usually omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.deps.Metrics.Handler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/messages", s.handleChatMessage)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/quests/next", s.handleNextQuest)
	r.Get("/v1/quests/summary", s.handleQuestSummary)
	r.Get("/v1/quests/count", s.handleQuestCount)
	r.Get("/v1/quests/{id}", s.handleQuestByID)

	r.Get("/v1/sessions", s.handleCurrentSession)
	r.Get("/v1/sessions/{id}", s.handleSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"canister_id":     s.deps.Target.CanisterID,
		"canister_source": s.deps.Target.Source,
		"network":         s.deps.Target.Network,
		"completion_mode": s.deps.CompletionMode,
	})
}

type chatRequest struct {
	Sender  string `json:"sender"`
	MsgID   string `json:"msg_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Messages []any `json:"messages"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat handler not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	sender := strings.TrimSpace(req.Sender)
	if sender == "" {
		sender = "anonymous"
	}

	msg := protocol.NewTextMessage(req.Message, false)
	if id := strings.TrimSpace(req.MsgID); id != "" {
		msg.MsgID = id
	}

	var out []any
	err := s.deps.Chat.HandleMessage(r.Context(), sender, msg, func(m any) error {
		out = append(out, m)
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "chat_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Messages: out})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(r.URL.Query().Get("sender"))
	if sender == "" {
		respondError(w, http.StatusBadRequest, "missing_sender", "query parameter sender is required")
		return
	}
	if s.deps.Chat == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat handler not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.deps.Metrics.ObserveConnection("ws_connected")
	s.logger.Info("websocket connected", zap.String("sender", sender))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.deps.Chat.RunConnection(ctx, sender, inbound, outbound)
	}()

	// Single writer: gorilla connections support one concurrent writer.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.deps.Metrics.ObserveConnection("ws_write_error")
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))

		parsed, err := protocol.ParseInbound(data)
		if err != nil {
			select {
			case outbound <- protocol.NewErrorEvent("invalid_message", err.Error()):
			default:
				s.deps.Metrics.ObserveConnection("outbound_drop")
			}
			continue
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	// Let in-flight replies drain before tearing the writer down.
	close(inbound)
	<-runDone
	drainOutbound(outbound)
	cancel()
	<-writerDone
	s.deps.Metrics.ObserveConnection("ws_disconnected")
	s.logger.Info("websocket disconnected", zap.String("sender", sender))
}

// drainOutbound gives the writer a short window to flush queued replies after
// the reader stopped.
func drainOutbound(outbound chan any) {
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	for {
		if len(outbound) == 0 {
			return
		}
		select {
		case <-deadline.C:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type questView struct {
	ID           *uint64 `json:"id,omitempty"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Link         *string `json:"link,omitempty"`
	RewardAmount *uint64 `json:"reward_amount,omitempty"`
	Prerequisite string  `json:"prerequisite"`
	Usable       bool    `json:"usable"`
	Raw          string  `json:"raw"`
}

func viewOf(q quest.Quest) questView {
	return questView{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		Link:         q.Link,
		RewardAmount: q.RewardAmount,
		Prerequisite: q.Prerequisite.String(),
		Usable:       q.Usable(),
		Raw:          q.Raw,
	}
}

func (s *Server) handleNextQuest(w http.ResponseWriter, r *http.Request) {
	if !s.questsConfigured(w) {
		return
	}
	q, found, err := s.deps.Quests.FetchNextQuest(r.Context())
	if err != nil {
		s.respondBridgeError(w, err)
		return
	}
	s.respondQuest(w, q, found)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "sessions not configured")
		return
	}
	sender := strings.TrimSpace(r.URL.Query().Get("sender"))
	if sender == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "sender is required")
		return
	}
	sess, err := s.deps.Sessions.Current(sender)
	s.respondSession(w, sess, err)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "sessions not configured")
		return
	}
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	s.respondSession(w, sess, err)
}

func (s *Server) respondSession(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", "no such session")
	case err != nil:
		s.logger.Error("session lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "session lookup failed")
	default:
		respondJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleQuestByID(w http.ResponseWriter, r *http.Request) {
	if !s.questsConfigured(w) {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_quest_id", "quest id must be a natural number")
		return
	}
	q, found, err := s.deps.Quests.QuestByID(r.Context(), id)
	if err != nil {
		s.respondBridgeError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "quest_not_found", "no quest with id "+strconv.FormatUint(id, 10))
		return
	}
	s.respondQuest(w, q, true)
}

func (s *Server) handleQuestSummary(w http.ResponseWriter, r *http.Request) {
	if !s.questsConfigured(w) {
		return
	}
	summary, err := s.deps.Quests.FetchAllQuestsSummary(r.Context())
	if err != nil {
		s.respondBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleQuestCount(w http.ResponseWriter, r *http.Request) {
	if !s.questsConfigured(w) {
		return
	}
	n, err := s.deps.Quests.QuestCount(r.Context())
	if err != nil {
		s.respondBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) respondQuest(w http.ResponseWriter, q quest.Quest, found bool) {
	if !found {
		respondJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"found": true, "quest": viewOf(q)})
}

func (s *Server) questsConfigured(w http.ResponseWriter) bool {
	if s.deps.Quests == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "quest bridge not configured")
		return false
	}
	return true
}

func (s *Server) respondBridgeError(w http.ResponseWriter, err error) {
	var bridgeErr *ledger.Error
	if !errors.As(err, &bridgeErr) {
		respondError(w, http.StatusBadGateway, "bridge_error", err.Error())
		return
	}
	respondError(w, http.StatusBadGateway, string(ledger.Reason(err)), err.Error())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
