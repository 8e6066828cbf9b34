package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/arena/pkg/domain"
)

// TranscriptStore implements ports.TranscriptStore with one JSON Lines file per session.
// Appends are fsynced before returning.
type TranscriptStore struct {
	BasePath string

	mu sync.Mutex
}

// NewTranscriptStore creates a transcript store rooted at basePath.
// If basePath is empty, it defaults to ".arena/transcripts".
func NewTranscriptStore(basePath string) *TranscriptStore {
	if basePath == "" {
		basePath = filepath.Join(".arena", "transcripts")
	}
	return &TranscriptStore{BasePath: basePath}
}

func (s *TranscriptStore) path(sessionKey string) string {
	return filepath.Join(s.BasePath, sessionKey+".jsonl")
}

// Append writes the turn as one line at the end of the session file.
func (s *TranscriptStore) Append(ctx context.Context, sessionKey string, turn domain.Turn) error {
	if err := validName(sessionKey); err != nil {
		return err
	}

	line, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure transcript directory: %w", err)
	}

	f, err := os.OpenFile(s.path(sessionKey), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	// Terminate a torn line left by a crash so it cannot swallow this turn.
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			line = append([]byte{'\n'}, line...)
		}
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to fsync transcript: %w", err)
	}
	return nil
}

// Load reads every turn of the session in order.
// A torn final line (crash mid-append) is skipped.
func (s *TranscriptStore) Load(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	if err := validName(sessionKey); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	turns := []domain.Turn{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var turn domain.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return turns, nil
}

// Delete removes the session file.
func (s *TranscriptStore) Delete(ctx context.Context, sessionKey string) error {
	if err := validName(sessionKey); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(sessionKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// List returns every session key with a transcript file.
func (s *TranscriptStore) List(ctx context.Context) ([]string, error) {
	return listExt(s.BasePath, ".jsonl")
}
