package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/arena/internal/config"
	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewLogger configures the application logger from cfg. Logs go to stderr.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Level), cfg.Format)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step Start", "run_id", e.RunID, "step", e.Step, "attempt", e.Attempt)
		},
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step Complete", "run_id", e.RunID, "step", e.Step, "duration", e.Duration)
		},
		OnStepFail: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step Fail", "run_id", e.RunID, "step", e.Step, "attempt", e.Attempt, "err", e.Err)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.Info("Run Finished", "run_id", e.RunID, "session_id", e.SessionKey, "status", e.Status)
		},
	}
}
