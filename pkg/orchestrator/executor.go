package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/aretw0/arena/pkg/session"
)

var (
	// ErrRunTerminal is returned when asked to execute a run that already finished.
	ErrRunTerminal = errors.New("run already finished")
	// ErrCheckpoint is returned when run state cannot be persisted.
	// The run is left as it was last stored and can be recovered later.
	ErrCheckpoint = errors.New("failed to checkpoint run")
)

// Executor drives a run through the pipeline, checkpointing after every step.
// A step that is already completed is never executed again; its stored output is reused.
type Executor struct {
	runs     ports.RunStore
	delivery ports.Delivery
	gen      ports.Generator
	locks    *session.Manager
	pipeline []Step

	maxAttempts     int
	backoffBase     time.Duration
	backoffMax      time.Duration
	generateTimeout time.Duration
	personas        Personas
	keepRuns        bool

	hooks  domain.LifecycleHooks
	logger *slog.Logger

	// sleep waits between attempts. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor that checkpoints into runs, posts turns
// through delivery and asks gen for each participant's contribution.
func NewExecutor(runs ports.RunStore, delivery ports.Delivery, gen ports.Generator, opts ...Option) *Executor {
	e := defaultExecutor()
	e.runs = runs
	e.delivery = delivery
	e.gen = gen
	e.pipeline = Pipeline()
	e.sleep = sleepCtx
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = session.NewManager(session.WithLogger(e.logger))
	}
	return e
}

// Execute runs every pending step of run in order.
// Runs of the same session execute one at a time. The run must already be
// stored; it is reloaded once the session lock is held.
// On context cancellation it returns without marking the run failed, so it can be resumed.
func (e *Executor) Execute(ctx context.Context, run *domain.Run) error {
	if run.State.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrRunTerminal, run.ID, run.State.Status)
	}
	return e.locks.WithLock(ctx, run.SessionKey, func(ctx context.Context) error {
		// Another executor may have advanced or finished the run while we waited.
		current, err := e.runs.Load(ctx, run.ID)
		if err != nil {
			if errors.Is(err, domain.ErrRunNotFound) {
				return fmt.Errorf("%w: %s was retired", ErrRunTerminal, run.ID)
			}
			return fmt.Errorf("failed to reload run %s: %w", run.ID, err)
		}
		*run = *current
		if run.State.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrRunTerminal, run.ID, run.State.Status)
		}
		return e.execute(ctx, run)
	})
}

func (e *Executor) execute(ctx context.Context, run *domain.Run) error {
	logger := e.logger.With("run_id", run.ID, "session_id", run.SessionKey)

	run.State.Status = domain.RunRunning
	if err := e.checkpoint(ctx, run); err != nil {
		return err
	}

	for _, step := range e.pipeline {
		if run.Completed(step.Name) {
			logger.Debug("step already completed, skipping", "step", step.Name)
			continue
		}
		if err := e.runStep(ctx, logger, run, step); err != nil {
			if errors.Is(err, ErrCheckpoint) {
				return err
			}
			if ctx.Err() != nil {
				logger.Info("run interrupted, will resume", "step", step.Name)
				return ctx.Err()
			}
			return e.fail(ctx, logger, run, step, err)
		}
	}

	run.State.Status = domain.RunCompleted
	if err := e.checkpoint(ctx, run); err != nil {
		return err
	}
	logger.Info("run completed")
	e.finish(ctx, run)
	return nil
}

// runStep executes step until it succeeds or the attempt budget is spent.
func (e *Executor) runStep(ctx context.Context, logger *slog.Logger, run *domain.Run, step Step) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		ev := e.stepEvent(run, step, attempt)
		if e.hooks.OnStepStart != nil {
			e.hooks.OnStepStart(ctx, ev)
		}

		start := time.Now()
		output, err := e.do(ctx, run, step)
		ev.Duration = time.Since(start)

		if err == nil {
			run.Complete(step.Name, output)
			if err := e.checkpoint(ctx, run); err != nil {
				return err
			}
			if e.hooks.OnStepComplete != nil {
				e.hooks.OnStepComplete(ctx, ev)
			}
			logger.Debug("step completed", "step", step.Name, "attempt", attempt)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		ev.Err = err
		run.Fail(step.Name, err)
		if cerr := e.checkpoint(ctx, run); cerr != nil {
			logger.Warn("failed to checkpoint step failure", "step", step.Name, "err", cerr)
		}
		if e.hooks.OnStepFail != nil {
			e.hooks.OnStepFail(ctx, ev)
		}
		logger.Warn("step failed", "step", step.Name, "attempt", attempt, "err", err)

		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return err
			}
		}
	}

	if step.Kind == KindGenerate {
		var gerr *domain.GenerationError
		if errors.As(lastErr, &gerr) {
			return &domain.GenerationError{Step: step.Name, Attempts: e.maxAttempts, Err: gerr.Err}
		}
		return &domain.GenerationError{Step: step.Name, Attempts: e.maxAttempts, Err: lastErr}
	}
	return fmt.Errorf("step %s failed after %d attempts: %w", step.Name, e.maxAttempts, lastErr)
}

func (e *Executor) do(ctx context.Context, run *domain.Run, step Step) (string, error) {
	switch step.Kind {
	case KindSignal:
		return "", e.delivery.PostResult(ctx, run.SessionKey, domain.Status(step.Participant))

	case KindGenerate:
		return e.generate(ctx, run, step)

	case KindPost:
		text, ok := run.Output(step.Source)
		if !ok {
			return "", fmt.Errorf("%s has no output to post", step.Source)
		}
		return "", e.delivery.PostResult(ctx, run.SessionKey, domain.Message(step.Participant, text))

	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (e *Executor) generate(ctx context.Context, run *domain.Run, step Step) (string, error) {
	messages, err := e.personas.Prompt(step, run)
	if err != nil {
		return "", err
	}

	gctx, cancel := context.WithTimeout(ctx, e.generateTimeout)
	defer cancel()

	out, err := e.gen.Generate(gctx, messages)
	if err != nil {
		if ctx.Err() == nil && errors.Is(gctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.generateTimeout, err)
		}
		return "", &domain.GenerationError{Step: step.Name, Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.GenerationError{Step: step.Name, Err: errors.New("empty response")}
	}
	return out, nil
}

// fail marks the run failed and tells the session why.
func (e *Executor) fail(ctx context.Context, logger *slog.Logger, run *domain.Run, step Step, cause error) error {
	logger.Error("run failed", "step", step.Name, "err", cause)

	run.State.Status = domain.RunFailed
	if err := e.checkpoint(ctx, run); err != nil {
		logger.Warn("failed to checkpoint run failure", "err", err)
	}

	notice := domain.SystemNotice(fmt.Sprintf("%s could not respond: %s", step.Participant, reason(cause)))
	if err := e.delivery.PostResult(ctx, run.SessionKey, notice); err != nil {
		logger.Error("failed to post failure notice", "err", err)
	}

	e.finish(ctx, run)
	return cause
}

func (e *Executor) finish(ctx context.Context, run *domain.Run) {
	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, &domain.RunEvent{
			Timestamp:  time.Now(),
			RunID:      run.ID,
			SessionKey: run.SessionKey,
			Status:     run.State.Status,
		})
	}
	if e.keepRuns {
		return
	}
	if err := e.runs.Delete(ctx, run.ID); err != nil {
		e.logger.Warn("failed to retire run", "run_id", run.ID, "err", err)
	}
}

func (e *Executor) checkpoint(ctx context.Context, run *domain.Run) error {
	run.UpdatedAt = time.Now().UTC()
	if err := e.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("%w %s: %w", ErrCheckpoint, run.ID, err)
	}
	return nil
}

func (e *Executor) stepEvent(run *domain.Run, step Step, attempt int) *domain.StepEvent {
	return &domain.StepEvent{
		Timestamp:  time.Now(),
		RunID:      run.ID,
		SessionKey: run.SessionKey,
		Step:       step.Name,
		Kind:       string(step.Kind),
		Sender:     step.Participant,
		Attempt:    attempt,
	}
}

// backoff returns the wait after the given failed attempt: base * 2^(attempt-1), capped.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.backoffMax {
			return e.backoffMax
		}
	}
	if d > e.backoffMax {
		return e.backoffMax
	}
	return d
}

// reason unwraps the generation error so the notice reads naturally.
func reason(err error) string {
	var gerr *domain.GenerationError
	if errors.As(err, &gerr) && gerr.Err != nil {
		return gerr.Err.Error()
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
