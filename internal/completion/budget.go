package completion

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const truncationMarker = " ..."

// Budget trims context text to a token allowance. It counts with tiktoken when
// the encoding is available and falls back to a character heuristic when the
// BPE ranks cannot be loaded (offline hosts).
type Budget struct {
	limit   int
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

// NewBudget returns nil for a non-positive limit; a nil Budget trims nothing.
func NewBudget(limit int, encoding string) *Budget {
	if limit <= 0 {
		return nil
	}
	if encoding == "" {
		encoding = "cl100k_base"
	}
	b := &Budget{limit: limit}
	if enc, err := tiktoken.GetEncoding(encoding); err == nil {
		b.encoder = enc
	}
	return b
}

// LoadBudget is NewBudget bounded by timeout. The first use of an encoding may
// fetch its ranks over the network; when that does not finish in time the
// heuristic budget is returned and the fetch is abandoned.
func LoadBudget(ctx context.Context, limit int, encoding string, timeout time.Duration) *Budget {
	if limit <= 0 {
		return nil
	}
	if timeout <= 0 {
		return NewBudget(limit, encoding)
	}
	done := make(chan *Budget, 1)
	go func() { done <- NewBudget(limit, encoding) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-done:
		return b
	case <-timer.C:
	case <-ctx.Done():
	}
	return NewHeuristicBudget(limit)
}

// NewHeuristicBudget skips tiktoken entirely and always estimates.
func NewHeuristicBudget(limit int) *Budget {
	if limit <= 0 {
		return nil
	}
	return &Budget{limit: limit}
}

func (b *Budget) Precise() bool {
	return b != nil && b.encoder != nil
}

func (b *Budget) Count(text string) int {
	if b == nil || text == "" {
		return 0
	}
	if b.encoder == nil {
		return heuristicTokenCount(text)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.encoder.Encode(text, nil, nil))
}

// Trim returns text unchanged when it fits, otherwise its longest prefix that
// fits followed by a truncation marker.
func (b *Budget) Trim(text string) string {
	if b == nil || text == "" {
		return text
	}
	if b.encoder == nil {
		if heuristicTokenCount(text) <= b.limit {
			return text
		}
		return truncateRunes(text, b.limit*4) + truncationMarker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	tokens := b.encoder.Encode(text, nil, nil)
	if len(tokens) <= b.limit {
		return text
	}
	head := b.encoder.Decode(tokens[:b.limit])
	// A cut in the middle of a multi-byte rune decodes to a replacement char.
	head = strings.TrimRight(head, "�")
	return head + truncationMarker
}

// roughly four characters per token for Latin text
func heuristicTokenCount(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

func truncateRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
