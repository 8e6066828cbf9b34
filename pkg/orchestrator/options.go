package orchestrator

import (
	"log/slog"
	"time"

	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/session"
)

// Defaults of the retry policy and of the generate timeout.
const (
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = 500 * time.Millisecond
	DefaultBackoffMax      = 10 * time.Second
	DefaultGenerateTimeout = 30 * time.Second
)

// Option configures an Executor.
type Option func(*Executor)

// WithRetry sets the attempt budget per step and the exponential backoff bounds.
// Zero values keep the defaults.
func WithRetry(maxAttempts int, base, max time.Duration) Option {
	return func(e *Executor) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if base > 0 {
			e.backoffBase = base
		}
		if max > 0 {
			e.backoffMax = max
		}
	}
}

// WithGenerateTimeout bounds each call to the generation backend.
func WithGenerateTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.generateTimeout = d
		}
	}
}

// WithPersonas overrides the participants' system prompts.
func WithPersonas(p Personas) Option {
	return func(e *Executor) {
		e.personas = p.withDefaults()
	}
}

// WithKeepRuns keeps terminal runs in the store instead of retiring them.
func WithKeepRuns(keep bool) Option {
	return func(e *Executor) {
		e.keepRuns = keep
	}
}

// WithSessionManager sets the lock manager used to serialize runs of one session.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Executor) {
		if m != nil {
			e.locks = m
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = h
	}
}

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func defaultExecutor() *Executor {
	return &Executor{
		maxAttempts:     DefaultMaxAttempts,
		backoffBase:     DefaultBackoffBase,
		backoffMax:      DefaultBackoffMax,
		generateTimeout: DefaultGenerateTimeout,
		personas:        DefaultPersonas(),
		logger:          logging.NewNop(),
	}
}
