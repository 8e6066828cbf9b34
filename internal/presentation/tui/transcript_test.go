package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []domain.Turn{
	domain.Message(domain.SenderUser, "cats vs dogs"),
	domain.Message(domain.SenderAgentA, "Cats win."),
	domain.SystemNotice("Agent B could not respond: timed out"),
}

func TestPlain(t *testing.T) {
	assert.Equal(t,
		"User: cats vs dogs\nAgent A: Cats win.\nSystem: Agent B could not respond: timed out\n",
		Plain(sample))
}

func TestMarkdown(t *testing.T) {
	md := Markdown("room-1", sample)
	assert.Contains(t, md, "# room-1")
	assert.Contains(t, md, "**Agent A**\n\nCats win.")
	assert.Contains(t, md, "> **System:** Agent B could not respond")

	assert.Contains(t, Markdown("empty", nil), "_No turns yet._")
}

func TestWriteTranscript_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTranscript(&buf, "room-1", sample))
	assert.Equal(t, Plain(sample), buf.String())
}

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)
	out, err := render(Markdown("room-1", sample))
	require.NoError(t, err)
	assert.Contains(t, out, "Cats win.")
}
