package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arena/internal/logging"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/ports"
)

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher is a durable work queue in front of an Executor.
// Runs are persisted before they are queued, so a crash between acceptance and
// execution is repaired by Recover.
type Dispatcher struct {
	exec    *Executor
	runs    ports.RunStore
	workers int
	queue   chan string
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets how many runs execute concurrently.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the buffer of the run queue.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan string, n)
		}
	}
}

// WithDispatcherLogger configures a logger for the Dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher and starts its workers.
// Workers stop when ctx is done or Stop is called.
func NewDispatcher(ctx context.Context, exec *Executor, runs ports.RunStore, opts ...DispatcherOption) *Dispatcher {
	dctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		exec:     exec,
		runs:     runs,
		workers:  4,
		queue:    make(chan string, 64),
		logger:   logging.NewNop(),
		inflight: make(map[string]struct{}),
		ctx:      dctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit persists run as pending and queues it. It does not wait for execution.
func (d *Dispatcher) Submit(ctx context.Context, run *domain.Run) error {
	if d.isStopped() {
		return ErrDispatcherStopped
	}
	if run.State.Status == "" {
		run.State.Status = domain.RunPending
	}
	if err := d.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ID, err)
	}
	d.enqueue(run.ID)
	d.logger.Debug("run submitted", "run_id", run.ID, "session_id", run.SessionKey)
	return nil
}

// Recover queues every non-terminal run found in the store.
// It returns how many runs were queued.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	ids, err := d.runs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	n := 0
	for _, id := range ids {
		run, err := d.runs.Load(ctx, id)
		if err != nil {
			d.logger.Warn("skipping unreadable run", "run_id", id, "err", err)
			continue
		}
		if run.State.Status.Terminal() {
			continue
		}
		if d.enqueue(id) {
			n++
		}
	}
	if n > 0 {
		d.logger.Info("recovered unfinished runs", "count", n)
	}
	return n, nil
}

// Resume queues a single run. A failed run is reopened at its failed step.
func (d *Dispatcher) Resume(ctx context.Context, runID string) error {
	run, err := d.runs.Load(ctx, runID)
	if err != nil {
		return err
	}
	reopened := run.State.Status == domain.RunFailed
	if err := Reopen(run); err != nil {
		return err
	}
	if reopened {
		if err := d.runs.Save(ctx, run); err != nil {
			return fmt.Errorf("failed to persist run %s: %w", run.ID, err)
		}
	}
	d.enqueue(runID)
	return nil
}

// Reopen makes a failed run executable again. Completed steps stay completed.
func Reopen(run *domain.Run) error {
	switch run.State.Status {
	case domain.RunCompleted:
		return fmt.Errorf("%w: %s is completed", ErrRunTerminal, run.ID)
	case domain.RunFailed:
		run.State.Status = domain.RunPending
	}
	return nil
}

// Stop stops accepting runs and waits for workers to return.
// Runs interrupted mid-pipeline stay in the store and are picked up by the next Recover.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// enqueue queues id unless it is already queued or running.
// It never blocks the caller: a full queue hands the send to a goroutine.
func (d *Dispatcher) enqueue(id string) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	if _, ok := d.inflight[id]; ok {
		d.mu.Unlock()
		return false
	}
	d.inflight[id] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- id:
	default:
		d.logger.Warn("run queue full, deferring", "run_id", id)
		go func() {
			select {
			case d.queue <- id:
			case <-d.ctx.Done():
			}
		}()
	}
	return true
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case id := <-d.queue:
			d.run(id)
		}
	}
}

func (d *Dispatcher) run(id string) {
	defer func() {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
	}()

	run, err := d.runs.Load(d.ctx, id)
	if err != nil {
		d.logger.Error("failed to load queued run", "run_id", id, "err", err)
		return
	}
	if run.State.Status.Terminal() {
		return
	}

	if err := d.exec.Execute(d.ctx, run); err != nil {
		if d.ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrRunTerminal) {
			d.logger.Debug("run finished elsewhere", "run_id", id)
			return
		}
		d.logger.Warn("run ended with error", "run_id", id, "err", err)
	}
}
