package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arena/pkg/adapters/memory"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SubmitPersistsThenExecutes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	exec := orchestrator.NewExecutor(store, delivery, newGenerator(fixed("a", "b")), orchestrator.WithKeepRuns(true))
	d := orchestrator.NewDispatcher(ctx, exec, store)
	defer d.Stop()

	require.NoError(t, d.Submit(ctx, newRun("run-1")))

	require.Eventually(t, func() bool {
		run, err := store.Load(ctx, "run-1")
		return err == nil && run.State.Status == domain.RunCompleted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, delivery.Messages(domain.KindMessage), 2)
}

func TestDispatcher_RecoverResumesUnfinishedRuns(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	half := newRun("half")
	half.State.Status = domain.RunRunning
	half.Complete(domain.StepSignalA, "")
	half.Complete(domain.StepGenA, "X")
	half.Complete(domain.StepPostA, "")
	require.NoError(t, store.Save(ctx, half))

	done := newRun("done")
	done.State.Status = domain.RunCompleted
	require.NoError(t, store.Save(ctx, done))

	delivery := &fakeDelivery{}
	gen := newGenerator(fixed("never", "B answers"))
	exec := orchestrator.NewExecutor(store, delivery, gen)
	d := orchestrator.NewDispatcher(ctx, exec, store, orchestrator.WithWorkers(1))
	defer d.Stop()

	n, err := d.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool {
		_, err := store.Load(ctx, "half")
		return err != nil
	}, 2*time.Second, 5*time.Millisecond, "recovered run completes and is retired")

	assert.Equal(t, 0, gen.Calls(domain.SenderAgentA))
	turns := delivery.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.Status(domain.SenderAgentB), turns[0])
	assert.Equal(t, domain.Message(domain.SenderAgentB, "B answers"), turns[1])

	_, err = store.Load(ctx, "done")
	assert.NoError(t, err, "terminal runs are left alone")
}

func TestDispatcher_ResumeReopensFailedRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	failed := newRun("failed")
	failed.State.Status = domain.RunFailed
	failed.Complete(domain.StepSignalA, "")
	failed.Complete(domain.StepGenA, "X")
	failed.Complete(domain.StepPostA, "")
	failed.Complete(domain.StepSignalB, "")
	failed.Fail(domain.StepGenB, assert.AnError)
	require.NoError(t, store.Save(ctx, failed))

	delivery := &fakeDelivery{}
	exec := orchestrator.NewExecutor(store, delivery, newGenerator(fixed("never", "second wind")), orchestrator.WithKeepRuns(true))
	d := orchestrator.NewDispatcher(ctx, exec, store)
	defer d.Stop()

	require.NoError(t, d.Resume(ctx, "failed"))

	require.Eventually(t, func() bool {
		run, err := store.Load(ctx, "failed")
		return err == nil && run.State.Status == domain.RunCompleted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.Turn{domain.Message(domain.SenderAgentB, "second wind")}, delivery.Turns())
}

func TestDispatcher_ResumeRejectsCompletedRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	run := newRun("done")
	run.State.Status = domain.RunCompleted
	require.NoError(t, store.Save(ctx, run))

	exec := orchestrator.NewExecutor(store, &fakeDelivery{}, newGenerator(fixed("a", "b")))
	d := orchestrator.NewDispatcher(ctx, exec, store)
	defer d.Stop()

	assert.ErrorIs(t, d.Resume(ctx, "done"), orchestrator.ErrRunTerminal)
	assert.ErrorIs(t, d.Resume(ctx, "missing"), domain.ErrRunNotFound)
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	store := memory.NewStore()
	exec := orchestrator.NewExecutor(store, &fakeDelivery{}, newGenerator(fixed("a", "b")))
	d := orchestrator.NewDispatcher(context.Background(), exec, store)
	d.Stop()

	err := d.Submit(context.Background(), newRun("late"))
	assert.ErrorIs(t, err, orchestrator.ErrDispatcherStopped)
}

// An exchange started from an observer ends with the user turn and both replies in the transcript.
func TestExchange_EndToEnd(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewStore()
	transcripts := memory.NewTranscriptStore()

	registry := hub.NewRegistry(ctx, hub.WithTranscriptStore(transcripts))
	defer registry.Shutdown()

	exec := orchestrator.NewExecutor(runs, registry, newGenerator(fixed("Cats rule.", "Dogs drool? No, dogs rule.")))
	d := orchestrator.NewDispatcher(ctx, exec, runs)
	defer d.Stop()
	registry.SetLauncher(d)

	h, err := registry.Get("r1")
	require.NoError(t, err)
	require.NoError(t, h.HandleFrame(ctx, []byte(`{"type":"start_exchange","topic":"cats vs dogs"}`)))

	require.Eventually(t, func() bool {
		snap, err := h.Snapshot(ctx)
		return err == nil && len(snap) == 3
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := h.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SenderUser, snap[0].Sender)
	assert.Equal(t, "cats vs dogs", snap[0].Text)
	assert.Equal(t, domain.Message(domain.SenderAgentA, "Cats rule.").Text, snap[1].Text)
	assert.Equal(t, domain.SenderAgentB, snap[2].Sender)

	stored, err := transcripts.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, stored, 3, "status turns are not persisted")
}
