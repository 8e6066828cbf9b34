// Package scripted implements a deterministic ports.Generator for demos and tests.
package scripted

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arena/pkg/domain"
)

// Generator cycles through canned lines, formatting each with the topic.
type Generator struct {
	lines []string
	delay time.Duration

	mu   sync.Mutex
	next int
}

// DefaultLines are used when none are given. %s is replaced by the prompt's subject.
var DefaultLines = []string{
	"I'm **all in** on %s. Nothing else comes close, and I'd stake my reputation on it.",
	"Bold claim, but %s? I've seen better arguments on a cereal box, and I'm not buying it.",
}

// New creates a generator. delay simulates backend latency.
func New(delay time.Duration, lines ...string) *Generator {
	if len(lines) == 0 {
		lines = DefaultLines
	}
	return &Generator{lines: lines, delay: delay}
}

// Generate returns the next canned line about the last user message.
func (g *Generator) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	line := g.lines[g.next%len(g.lines)]
	g.next++
	g.mu.Unlock()

	if !strings.Contains(line, "%s") {
		return line, nil
	}
	return fmt.Sprintf(line, subject(messages)), nil
}

// subject extracts the topic from the last user message.
func subject(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		content := messages[i].Content
		if idx := strings.LastIndex(content, "Topic: "); idx >= 0 {
			return strings.TrimSpace(content[idx+len("Topic: "):])
		}
		if strings.HasPrefix(content, "Agent A said: ") {
			return "that"
		}
		return strings.TrimSpace(content)
	}
	return "this"
}
