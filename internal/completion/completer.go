// Package completion is the text-generation collaborator behind chat replies.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoCredential is returned when no API key is configured for the provider.
	ErrNoCredential = errors.New("completion credential not configured")
	ErrEmptyReply   = errors.New("completion returned no text")
)

const (
	ModeAuto   = "auto"
	ModeOpenAI = "openai"
	ModeMock   = "mock"

	DefaultBaseURL   = "https://api.asi1.ai/v1"
	DefaultModel     = "asi1-mini"
	DefaultMaxTokens = 1024
)

// Request is one completion turn. System carries the persona instruction and
// Context the quest information rendered for this turn.
type Request struct {
	System   string
	Context  string
	UserText string
}

// Completer produces reply text for one request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Mode      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewCompleter selects an implementation by mode. In auto mode a missing API
// key yields an UnavailableCompleter rather than an error, so the service
// still starts and answers with its apology text.
func NewCompleter(cfg Config) (Completer, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeAuto:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewUnavailableCompleter(), "unavailable", nil
		}
		return NewOpenAICompleter(cfg), ModeOpenAI, nil
	case ModeOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, "", fmt.Errorf("completion mode %q: %w", mode, ErrNoCredential)
		}
		return NewOpenAICompleter(cfg), ModeOpenAI, nil
	case ModeMock:
		return NewMockCompleter(), ModeMock, nil
	default:
		return nil, "", fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}

// UnavailableCompleter fails every request with ErrNoCredential.
type UnavailableCompleter struct{}

func NewUnavailableCompleter() *UnavailableCompleter { return &UnavailableCompleter{} }

func (UnavailableCompleter) Complete(context.Context, Request) (string, error) {
	return "", ErrNoCredential
}

// systemPrompt joins the persona and the per-turn context into one system message.
func systemPrompt(req Request) string {
	system := strings.TrimSpace(req.System)
	extra := strings.TrimSpace(req.Context)
	switch {
	case extra == "":
		return system
	case system == "":
		return extra
	default:
		return system + "\n\n" + extra
	}
}
