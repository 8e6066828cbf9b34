package memory

import (
	"context"
	"sync"

	"github.com/aretw0/arena/pkg/domain"
)

// TranscriptStore implements ports.TranscriptStore in memory.
// Transcripts live for the process lifetime only.
type TranscriptStore struct {
	data map[string][]domain.Turn
	mu   sync.RWMutex
}

// NewTranscriptStore creates an empty in-memory transcript store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		data: make(map[string][]domain.Turn),
	}
}

// Append adds a turn to the session transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionKey string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionKey] = append(s.data[sessionKey], turn)
	return nil
}

// Load returns a copy of the session transcript.
func (s *TranscriptStore) Load(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.data[sessionKey]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Delete removes the transcript.
func (s *TranscriptStore) Delete(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionKey)
	return nil
}

// List returns every session key with a transcript.
func (s *TranscriptStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}
