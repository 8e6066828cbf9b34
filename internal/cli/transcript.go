package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/arena/internal/presentation/tui"
	"github.com/aretw0/arena/pkg/ports"
)

// ShowTranscript renders the stored transcript of a session.
func ShowTranscript(ctx context.Context, store ports.TranscriptStore, key string, out io.Writer) error {
	turns, err := store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("error loading transcript '%s': %w", key, err)
	}
	return tui.WriteTranscript(out, key, turns)
}

// ListTranscripts prints every session key with a stored transcript.
func ListTranscripts(ctx context.Context, store ports.TranscriptStore, out io.Writer) error {
	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No stored sessions found.")
		return nil
	}
	fmt.Fprintln(out, "Sessions:")
	for _, k := range keys {
		fmt.Fprintln(out, "- "+k)
	}
	return nil
}
