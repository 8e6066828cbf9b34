package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arena/pkg/adapters/file"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure the file adapters implement the ports
var (
	_ ports.RunStore        = (*file.Store)(nil)
	_ ports.TranscriptStore = (*file.TranscriptStore)(nil)
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, file.New(t.TempDir()))
}

func TestFileTranscriptStore_Contract(t *testing.T) {
	ports.TranscriptStoreContract(t, file.NewTranscriptStore(t.TempDir()))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	run := domain.NewRun("run-1", "room", "topic", nil)
	for i := 0; i < 3; i++ {
		run.Complete(domain.StepSignalA, "")
		require.NoError(t, store.Save(ctx, run))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1.json", entries[0].Name())
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, domain.NewRun("../escape", "room", "topic", nil))
	assert.Error(t, err)

	_, err = store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileTranscriptStore_SkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	store := file.NewTranscriptStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "room", domain.Message(domain.SenderUser, "first")))

	// Simulate a crash in the middle of the second append
	f, err := os.OpenFile(filepath.Join(dir, "room.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"sender":"Agent A","te`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	turns, err := store.Load(ctx, "room")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "first", turns[0].Text)
}

func TestFileTranscriptStore_AppendAfterTornLine(t *testing.T) {
	dir := t.TempDir()
	store := file.NewTranscriptStore(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "room.jsonl"), []byte(`{"sender":"User","text":"a","kind":"message"}`+"\n"+`{"send`), 0644))
	require.NoError(t, store.Append(ctx, "room", domain.Message(domain.SenderAgentA, "b")))

	turns, err := store.Load(ctx, "room")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[1].Text)
}
