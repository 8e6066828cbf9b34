package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/arena/internal/config"
	"github.com/aretw0/arena/internal/presentation/graph"
	httpAdapter "github.com/aretw0/arena/pkg/adapters/http"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/aretw0/arena/pkg/session"
)

// ListRuns prints a table of stored runs, oldest first.
func ListRuns(ctx context.Context, runs ports.RunStore, out io.Writer) error {
	ids, err := runs.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No stored runs found.")
		return nil
	}

	loaded := make([]*domain.Run, 0, len(ids))
	for _, id := range ids {
		run, err := runs.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "Skipping '%s': %v\n", id, err)
			continue
		}
		loaded = append(loaded, run)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].CreatedAt.Before(loaded[j].CreatedAt) })

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSESSION\tSTATUS\tSTEPS\tUPDATED")
	for _, run := range loaded {
		done, total := orchestrator.Progress(run)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			run.ID, run.SessionKey, run.State.Status, done, total, run.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// InspectRun prints the stored checkpoint of a run as JSON.
func InspectRun(ctx context.Context, runs ports.RunStore, id string, out io.Writer) error {
	run, err := runs.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", id, err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling run: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// GraphRun prints the pipeline as Mermaid, with the checkpoints of run id if given.
func GraphRun(ctx context.Context, runs ports.RunStore, id string, out io.Writer) error {
	var run *domain.Run
	if id != "" {
		var err error
		if run, err = runs.Load(ctx, id); err != nil {
			return fmt.Errorf("error loading run '%s': %w", id, err)
		}
	}
	_, err := io.WriteString(out, graph.GenerateMermaid(orchestrator.Pipeline(), run))
	return err
}

// RemoveRuns deletes runs by ID. It reports each failure and returns an error if any occurred.
func RemoveRuns(ctx context.Context, runs ports.RunStore, ids []string, out io.Writer) error {
	failed := 0
	for _, id := range ids {
		if err := runs.Delete(ctx, id); err != nil {
			fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "Removed run '%s'\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d run(s) could not be removed", failed)
	}
	return nil
}

// ResumeOptions controls an out-of-process resume.
type ResumeOptions struct {
	RunID string
	// ServerURL, if set, delivers turns to a running arena over HTTP.
	// Otherwise persisted turns are appended to the transcript store directly.
	ServerURL string
}

// ResumeRun executes a stored run to completion in this process.
// A failed run is reopened at the step that failed.
func ResumeRun(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ResumeOptions, out io.Writer) error {
	stores, err := OpenStores(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return err
	}
	return resume(ctx, cfg, logger, stores, gen, opts, out)
}

func resume(ctx context.Context, cfg config.Config, logger *slog.Logger, stores *Stores, gen ports.Generator, opts ResumeOptions, out io.Writer) error {
	run, err := stores.Runs.Load(ctx, opts.RunID)
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", opts.RunID, err)
	}
	reopened := run.State.Status == domain.RunFailed
	if err := orchestrator.Reopen(run); err != nil {
		return err
	}
	if reopened {
		if err := stores.Runs.Save(ctx, run); err != nil {
			return fmt.Errorf("error reopening run '%s': %w", run.ID, err)
		}
	}

	var delivery ports.Delivery = transcriptDelivery{store: stores.Transcripts}
	if opts.ServerURL != "" {
		delivery = httpAdapter.NewClient(opts.ServerURL)
	} else if addr := localServerURL(cfg.Server.Addr); addr != "" {
		// A live hub owns its session's transcript; appending behind it would go unseen.
		if err := httpAdapter.NewClient(addr).Ping(ctx); err == nil {
			return fmt.Errorf("an arena server is listening on %s: resume with --server %s so its hub records the turns", addr, addr)
		}
	}

	lockOpts := []session.Option{session.WithLockTTL(cfg.Orchestrator.LockTTL), session.WithLogger(logger)}
	if stores.Locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(stores.Locker))
	}
	exec := orchestrator.NewExecutor(stores.Runs, delivery, gen,
		orchestrator.WithRetry(cfg.Orchestrator.MaxAttempts, cfg.Orchestrator.BackoffBase, cfg.Orchestrator.BackoffMax),
		orchestrator.WithGenerateTimeout(cfg.Generator.Timeout),
		orchestrator.WithPersonas(cfg.Personas),
		orchestrator.WithKeepRuns(cfg.Orchestrator.KeepRuns),
		orchestrator.WithSessionManager(session.NewManager(lockOpts...)),
		orchestrator.WithLifecycleHooks(createDebugHooks(logger)),
		orchestrator.WithLogger(logger),
	)

	done, total := orchestrator.Progress(run)
	printSystemMessage(out, "Resuming run '%s' at step %d/%d.", run.ID, min(done+1, total), total)
	if err := exec.Execute(ctx, run); err != nil {
		return fmt.Errorf("run '%s' did not complete: %w", run.ID, err)
	}
	printSystemMessage(out, "Run '%s' completed.", run.ID)
	return nil
}

// transcriptDelivery appends persisted turns straight to the store.
// Status turns have no observers to reach and are dropped.
type transcriptDelivery struct {
	store ports.TranscriptStore
}

func (d transcriptDelivery) PostResult(ctx context.Context, sessionKey string, turn domain.Turn) error {
	turn = turn.Normalize()
	if !turn.Persisted() {
		return nil
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	return d.store.Append(ctx, sessionKey, turn)
}

// localServerURL turns a listen address such as ":8080" into a URL on this host.
func localServerURL(addr string) string {
	switch {
	case addr == "":
		return ""
	case strings.Contains(addr, "://"):
		return addr
	case strings.HasPrefix(addr, ":"):
		return "http://localhost" + addr
	default:
		return "http://" + addr
	}
}
