package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		run := domain.NewRun(runID, "room-1", "cats vs dogs", []domain.Turn{domain.Message(domain.SenderUser, "cats vs dogs")})
		run.Complete(domain.StepSignalA, "")
		run.Complete(domain.StepGenA, "X")
		run.Fail(domain.StepPostA, assert.AnError)

		require.NoError(t, store.Save(ctx, run), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, run.SessionKey, loaded.SessionKey)
		assert.Equal(t, run.Topic, loaded.Topic)
		assert.Equal(t, run.Context[0].Text, loaded.Context[0].Text)

		out, ok := loaded.Output(domain.StepGenA)
		assert.True(t, ok, "completed step must survive a round trip")
		assert.Equal(t, "X", out)
		assert.Equal(t, domain.StepFailed, loaded.Step(domain.StepPostA).Status)
		assert.Equal(t, domain.StepPending, loaded.Step(domain.StepGenB).Status)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		run, err := store.Load(ctx, runID)
		require.NoError(t, err)
		run.Complete(domain.StepPostA, "")
		run.State.Status = domain.RunRunning
		require.NoError(t, store.Save(ctx, run))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.True(t, loaded.Completed(domain.StepPostA))
		assert.Equal(t, domain.RunRunning, loaded.State.Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")

		assert.NoError(t, store.Delete(ctx, runID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewRun(id1, "room", "a", nil)))
		require.NoError(t, store.Save(ctx, domain.NewRun(id2, "room", "b", nil)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

// TranscriptStoreContract runs a suite of tests to verify that a TranscriptStore
// implementation keeps turns in order and per session.
func TranscriptStoreContract(t *testing.T, store TranscriptStore) {
	ctx := context.Background()
	key := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Append Preserves Order", func(t *testing.T) {
		want := []domain.Turn{
			domain.Message(domain.SenderUser, "cats vs dogs"),
			domain.Message(domain.SenderAgentA, "Cats, obviously."),
			domain.SystemNotice("Agent B could not respond"),
		}
		for _, turn := range want {
			require.NoError(t, store.Append(ctx, key, turn))
		}

		got, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Sender, got[i].Sender)
			assert.Equal(t, want[i].Text, got[i].Text)
			assert.Equal(t, want[i].Kind, got[i].Kind)
		}
	})

	t.Run("Sessions Are Isolated", func(t *testing.T) {
		other := key + "-other"
		require.NoError(t, store.Append(ctx, other, domain.Message(domain.SenderUser, "tabs vs spaces")))
		defer func() { _ = store.Delete(ctx, other) }()

		got, err := store.Load(ctx, other)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, key)
		assert.Contains(t, keys, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
