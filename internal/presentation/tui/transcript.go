package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/arena/pkg/domain"
)

// Markdown formats a transcript as a markdown document.
func Markdown(key string, turns []domain.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", key)
	if len(turns) == 0 {
		b.WriteString("_No turns yet._\n")
		return b.String()
	}
	for _, t := range turns {
		switch t.Kind {
		case domain.KindSystemNotice:
			fmt.Fprintf(&b, "> **%s:** %s\n\n", domain.SenderSystem, t.Text)
		default:
			fmt.Fprintf(&b, "**%s**\n\n%s\n\n", t.Sender, t.Text)
		}
	}
	return b.String()
}

// Plain formats a transcript as "sender: text" lines.
func Plain(turns []domain.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		sender := t.Sender
		if t.Kind == domain.KindSystemNotice {
			sender = domain.SenderSystem
		}
		fmt.Fprintf(&b, "%s: %s\n", sender, t.Text)
	}
	return b.String()
}

// WriteTranscript renders turns to out: styled markdown on a terminal, plain lines otherwise.
func WriteTranscript(out io.Writer, key string, turns []domain.Turn) error {
	f, _ := out.(*os.File)
	if !IsTerminal(f) {
		_, err := io.WriteString(out, Plain(turns))
		return err
	}

	render, err := NewRenderer(Width(f))
	if err != nil {
		return err
	}
	rendered, err := render(Markdown(key, turns))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}
