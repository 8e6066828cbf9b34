package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arena/pkg/adapters/memory"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator answers per participant, detected from the system prompt.
type fakeGenerator struct {
	mu    sync.Mutex
	calls map[string]int
	// respond returns the output for the n-th call (1-based) of sender.
	respond func(ctx context.Context, sender string, n int, msgs []domain.ChatMessage) (string, error)
}

func newGenerator(respond func(ctx context.Context, sender string, n int, msgs []domain.ChatMessage) (string, error)) *fakeGenerator {
	return &fakeGenerator{calls: make(map[string]int), respond: respond}
}

func (g *fakeGenerator) Generate(ctx context.Context, msgs []domain.ChatMessage) (string, error) {
	sender := domain.SenderAgentB
	if strings.Contains(msgs[0].Content, "You are Agent A") {
		sender = domain.SenderAgentA
	}
	g.mu.Lock()
	g.calls[sender]++
	n := g.calls[sender]
	g.mu.Unlock()
	return g.respond(ctx, sender, n, msgs)
}

func (g *fakeGenerator) Calls(sender string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[sender]
}

func fixed(a, b string) func(context.Context, string, int, []domain.ChatMessage) (string, error) {
	return func(_ context.Context, sender string, _ int, _ []domain.ChatMessage) (string, error) {
		if sender == domain.SenderAgentA {
			return a, nil
		}
		return b, nil
	}
}

type recordedTurn struct {
	Session string
	Turn    domain.Turn
}

type fakeDelivery struct {
	mu    sync.Mutex
	turns []recordedTurn
}

func (d *fakeDelivery) PostResult(ctx context.Context, sessionKey string, turn domain.Turn) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.turns = append(d.turns, recordedTurn{Session: sessionKey, Turn: turn})
	return nil
}

func (d *fakeDelivery) Turns() []domain.Turn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Turn, 0, len(d.turns))
	for _, r := range d.turns {
		out = append(out, r.Turn)
	}
	return out
}

func (d *fakeDelivery) Messages(kind domain.TurnKind) []domain.Turn {
	var out []domain.Turn
	for _, t := range d.Turns() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func fastRetry() orchestrator.Option {
	return orchestrator.WithRetry(3, time.Millisecond, 2*time.Millisecond)
}

func newRun(id string) *domain.Run {
	return domain.NewRun(id, "r1", "cats vs dogs", []domain.Turn{domain.Message(domain.SenderUser, "cats vs dogs")})
}

// savedRun stores a new pending run, as the dispatcher does before execution.
func savedRun(t *testing.T, store ports.RunStore, id string) *domain.Run {
	t.Helper()
	run := newRun(id)
	require.NoError(t, store.Save(context.Background(), run))
	return run
}

func TestExecutor_FullRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	gen := newGenerator(fixed("Cats are great.", "Dogs are better."))
	exec := orchestrator.NewExecutor(store, delivery, gen, fastRetry())

	run := newRun("run-1")
	require.NoError(t, store.Save(ctx, run))
	require.NoError(t, exec.Execute(ctx, run))

	turns := delivery.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, domain.Status(domain.SenderAgentA), turns[0])
	assert.Equal(t, domain.Message(domain.SenderAgentA, "Cats are great."), turns[1])
	assert.Equal(t, domain.Status(domain.SenderAgentB), turns[2])
	assert.Equal(t, domain.Message(domain.SenderAgentB, "Dogs are better."), turns[3])

	assert.Equal(t, domain.RunCompleted, run.State.Status)
	_, err := store.Load(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound, "finished runs are retired")
}

func TestExecutor_PromptsCarryContextAndTopic(t *testing.T) {
	ctx := context.Background()
	var prompts [][]domain.ChatMessage
	var mu sync.Mutex
	gen := newGenerator(func(_ context.Context, sender string, _ int, msgs []domain.ChatMessage) (string, error) {
		mu.Lock()
		prompts = append(prompts, msgs)
		mu.Unlock()
		return "reply from " + sender, nil
	})
	store := memory.NewStore()
	exec := orchestrator.NewExecutor(store, &fakeDelivery{}, gen)

	run := domain.NewRun("run-1", "r1", "cats vs dogs", []domain.Turn{
		domain.Message(domain.SenderAgentB, "earlier"),
		domain.Message(domain.SenderUser, "cats vs dogs"),
	})
	require.NoError(t, store.Save(ctx, run))
	require.NoError(t, exec.Execute(ctx, run))

	require.Len(t, prompts, 2)
	assert.Equal(t, domain.RoleSystem, prompts[0][0].Role)
	assert.Contains(t, prompts[0][0].Content, "Argue FOR the topic")
	assert.Equal(t, "Context: Agent B: earlier\nUser: cats vs dogs\n\nTopic: cats vs dogs", prompts[0][1].Content)

	assert.Contains(t, prompts[1][0].Content, "Refute Agent A")
	assert.Equal(t, "Agent A said: reply from Agent A", prompts[1][1].Content)
}

func TestExecutor_ResumeReusesCompletedOutputs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	gen := newGenerator(fixed("should not be used", "B answers"))
	exec := orchestrator.NewExecutor(store, delivery, gen)

	// Crashed right after gen-a was checkpointed.
	run := newRun("run-1")
	run.State.Status = domain.RunRunning
	run.Complete(domain.StepSignalA, "")
	run.Complete(domain.StepGenA, "X")
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.NoError(t, exec.Execute(ctx, loaded))

	assert.Equal(t, 0, gen.Calls(domain.SenderAgentA), "gen-a must not run again")
	assert.Equal(t, 1, gen.Calls(domain.SenderAgentB))

	turns := delivery.Turns()
	require.Len(t, turns, 3, "signal-a is not repeated")
	assert.Equal(t, domain.Message(domain.SenderAgentA, "X"), turns[0])
	assert.Equal(t, domain.Message(domain.SenderAgentB, "B answers"), turns[2])
}

func TestExecutor_RetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	var failures []domain.StepName
	gen := newGenerator(func(_ context.Context, sender string, n int, _ []domain.ChatMessage) (string, error) {
		if sender == domain.SenderAgentB && n < 3 {
			return "", errors.New("backend unavailable")
		}
		return sender + " speaks", nil
	})
	exec := orchestrator.NewExecutor(store, delivery, gen,
		fastRetry(),
		orchestrator.WithKeepRuns(true),
		orchestrator.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepFail: func(_ context.Context, ev *domain.StepEvent) { failures = append(failures, ev.Step) },
		}),
	)

	run := savedRun(t, store, "run-1")
	require.NoError(t, exec.Execute(ctx, run))

	messages := delivery.Messages(domain.KindMessage)
	require.Len(t, messages, 2, "each message is posted exactly once")
	assert.Equal(t, "Agent B speaks", messages[1].Text)
	assert.Empty(t, delivery.Messages(domain.KindSystemNotice))
	assert.Equal(t, []domain.StepName{domain.StepGenB, domain.StepGenB}, failures)

	stored, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, stored.State.Status)
	assert.Equal(t, 3, stored.Step(domain.StepGenB).Attempts)
	assert.Equal(t, 1, stored.Step(domain.StepGenA).Attempts)
}

func TestExecutor_ExhaustedRetriesPostOneNotice(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	var finished []domain.RunStatus
	gen := newGenerator(func(_ context.Context, sender string, _ int, _ []domain.ChatMessage) (string, error) {
		if sender == domain.SenderAgentB {
			return "", errors.New("model overloaded")
		}
		return "A speaks", nil
	})
	exec := orchestrator.NewExecutor(store, delivery, gen,
		fastRetry(),
		orchestrator.WithKeepRuns(true),
		orchestrator.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunFinish: func(_ context.Context, ev *domain.RunEvent) { finished = append(finished, ev.Status) },
		}),
	)

	run := savedRun(t, store, "run-1")
	err := exec.Execute(ctx, run)

	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, domain.StepGenB, gerr.Step)
	assert.Equal(t, 3, gerr.Attempts)
	assert.Equal(t, 3, gen.Calls(domain.SenderAgentB))

	notices := delivery.Messages(domain.KindSystemNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SenderSystem, notices[0].Sender)
	assert.Equal(t, "Agent B could not respond: model overloaded", notices[0].Text)
	assert.Len(t, delivery.Messages(domain.KindMessage), 1, "post-b never happened")

	stored, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, stored.State.Status)
	assert.Equal(t, domain.StepFailed, stored.Step(domain.StepGenB).Status)
	assert.Equal(t, []domain.RunStatus{domain.RunFailed}, finished)

	err = exec.Execute(ctx, stored)
	assert.ErrorIs(t, err, orchestrator.ErrRunTerminal)
}

func TestExecutor_GenerateTimeout(t *testing.T) {
	ctx := context.Background()
	delivery := &fakeDelivery{}
	gen := newGenerator(func(ctx context.Context, _ string, _ int, _ []domain.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	store := memory.NewStore()
	exec := orchestrator.NewExecutor(store, delivery, gen,
		orchestrator.WithRetry(1, time.Millisecond, time.Millisecond),
		orchestrator.WithGenerateTimeout(10*time.Millisecond),
	)

	err := exec.Execute(ctx, savedRun(t, store, "run-1"))

	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, domain.StepGenA, gerr.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	notices := delivery.Messages(domain.KindSystemNotice)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "Agent A could not respond: timed out")
}

func TestExecutor_EmptyOutputIsRetried(t *testing.T) {
	ctx := context.Background()
	delivery := &fakeDelivery{}
	gen := newGenerator(func(_ context.Context, sender string, n int, _ []domain.ChatMessage) (string, error) {
		if n == 1 {
			return "   ", nil
		}
		return sender + " speaks", nil
	})
	store := memory.NewStore()
	exec := orchestrator.NewExecutor(store, delivery, gen, fastRetry())

	require.NoError(t, exec.Execute(ctx, savedRun(t, store, "run-1")))
	messages := delivery.Messages(domain.KindMessage)
	require.Len(t, messages, 2)
	assert.Equal(t, "Agent A speaks", messages[0].Text)
}

func TestExecutor_CancellationLeavesRunResumable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewStore()
	delivery := &fakeDelivery{}
	gen := newGenerator(func(gctx context.Context, sender string, _ int, _ []domain.ChatMessage) (string, error) {
		if sender == domain.SenderAgentB {
			cancel()
			<-gctx.Done()
			return "", gctx.Err()
		}
		return "A speaks", nil
	})
	exec := orchestrator.NewExecutor(store, delivery, gen, fastRetry())

	run := savedRun(t, store, "run-1")
	err := exec.Execute(ctx, run)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, delivery.Messages(domain.KindSystemNotice))

	stored, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, stored.State.Status)
	assert.True(t, stored.Completed(domain.StepPostA))
	assert.False(t, stored.Completed(domain.StepGenB))
	assert.Equal(t, 0, stored.Step(domain.StepGenB).Attempts, "an interrupted attempt is not a failure")
}

func TestExecutor_CheckpointFailureStopsRun(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.NewStore(), failAfter: 2}
	delivery := &fakeDelivery{}
	gen := newGenerator(fixed("a", "b"))
	exec := orchestrator.NewExecutor(store, delivery, gen, fastRetry())

	err := exec.Execute(ctx, savedRun(t, store.Store, "run-1"))
	assert.ErrorIs(t, err, orchestrator.ErrCheckpoint)
	assert.Empty(t, delivery.Messages(domain.KindSystemNotice))
}

// flakyStore fails every Save after the first failAfter calls.
type flakyStore struct {
	*memory.Store
	saves     atomic.Int32
	failAfter int32
}

func (s *flakyStore) Save(ctx context.Context, run *domain.Run) error {
	if s.saves.Add(1) > s.failAfter {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, run)
}

func TestExecutor_SameSessionRunsDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	delivery := &fakeDelivery{}
	gen := newGenerator(func(_ context.Context, sender string, _ int, _ []domain.ChatMessage) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return sender + " speaks", nil
	})
	store := memory.NewStore()
	exec := orchestrator.NewExecutor(store, delivery, gen)

	var wg sync.WaitGroup
	for _, id := range []string{"run-1", "run-2"} {
		run := savedRun(t, store, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, exec.Execute(ctx, run))
		}()
	}
	wg.Wait()

	pattern := []domain.Turn{
		domain.Status(domain.SenderAgentA),
		domain.Message(domain.SenderAgentA, "Agent A speaks"),
		domain.Status(domain.SenderAgentB),
		domain.Message(domain.SenderAgentB, "Agent B speaks"),
	}
	assert.Equal(t, append(append([]domain.Turn{}, pattern...), pattern...), delivery.Turns())
}
