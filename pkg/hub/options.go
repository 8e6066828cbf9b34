package hub

import (
	"context"
	"log/slog"

	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/google/uuid"
)

// DefaultContextWindow is the number of trailing turns handed to a new run.
const DefaultContextWindow = 6

// Launcher accepts a run for asynchronous execution.
// Submit must persist the run before returning and must not wait for the pipeline.
type Launcher interface {
	Submit(ctx context.Context, run *domain.Run) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, run *domain.Run) error

// Submit calls f.
func (f LauncherFunc) Submit(ctx context.Context, run *domain.Run) error { return f(ctx, run) }

// Hooks are optional callbacks for hub observability.
type Hooks struct {
	OnTurn          func(sessionKey string, turn domain.Turn)
	OnDeliveryError func(sessionKey string, err *domain.DeliveryError)
	OnMalformed     func(sessionKey string, err error)
	OnAttach        func(sessionKey string)
	OnDetach        func(sessionKey string)
}

// Option configures a Hub (and every hub created by a Registry).
type Option func(*config)

type config struct {
	store    ports.TranscriptStore
	launcher Launcher
	window   int
	mailbox  int
	logger   *slog.Logger
	hooks    Hooks
	newID    func() string
}

func defaultConfig() config {
	return config{
		window:  DefaultContextWindow,
		mailbox: 64,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
}

// WithTranscriptStore makes the hub persist and restore its transcript.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithLauncher sets where accepted runs are handed off.
func WithLauncher(l Launcher) Option {
	return func(c *config) {
		c.launcher = l
	}
}

// WithContextWindow sets how many trailing turns a new run receives.
func WithContextWindow(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithMailboxSize sets the buffer of the hub's inbound queue.
func WithMailboxSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.mailbox = n
		}
	}
}

// WithLogger configures a logger for the hub.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks registers observability callbacks.
func WithHooks(h Hooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithIDGenerator overrides how run IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}
