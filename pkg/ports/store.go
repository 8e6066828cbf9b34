package ports

import (
	"context"

	"github.com/aretw0/arena/pkg/domain"
)

// RunStore persists run checkpoints.
// This is what lets a crashed run resume at its first incomplete step.
type RunStore interface {
	// Save persists the run, overwriting any previous checkpoint with the same ID.
	Save(ctx context.Context, run *domain.Run) error

	// Load retrieves a run by ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Run, error)

	// Delete removes a run. Deleting a missing run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of every stored run.
	List(ctx context.Context) ([]string, error)
}

// TranscriptStore persists the ordered turns of each session.
type TranscriptStore interface {
	// Append adds a turn at the end of the session transcript.
	Append(ctx context.Context, sessionKey string, turn domain.Turn) error

	// Load returns the transcript in insertion order.
	// Returns domain.ErrSessionNotFound if nothing was ever appended for the key.
	Load(ctx context.Context, sessionKey string) ([]domain.Turn, error)

	// Delete removes a transcript.
	Delete(ctx context.Context, sessionKey string) error

	// List returns every session key with a stored transcript.
	List(ctx context.Context) ([]string, error)
}
