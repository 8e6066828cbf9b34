package ports

import (
	"context"

	"github.com/aretw0/arena/pkg/domain"
)

// Generator produces text from an ordered prompt.
// Implementations must honour ctx cancellation; the orchestrator bounds every call with a timeout.
type Generator interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Delivery posts a turn to the session identified by key.
// It is the only path by which pipeline progress reaches observers.
type Delivery interface {
	PostResult(ctx context.Context, sessionKey string, turn domain.Turn) error
}
