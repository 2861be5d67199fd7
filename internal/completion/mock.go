package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockCompleter gives deterministic local replies when no provider is wired.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter { return &MockCompleter{} }

func (MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(req), nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.UserText)
	if base == "" {
		base = "I am listening."
	}

	lead := firstLine(req.Context)
	if lead == "" {
		return fmt.Sprintf("You asked: %s", base)
	}
	return fmt.Sprintf("You asked: %s\n%s", base, lead)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
