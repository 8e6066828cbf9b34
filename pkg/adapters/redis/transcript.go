package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// TranscriptStore implements ports.TranscriptStore with one Redis list per session.
// RPUSH keeps insertion order; the TTL is refreshed on every append.
type TranscriptStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewTranscriptStore creates a transcript store from an existing client.
func NewTranscriptStore(client *backend.Client, opts ...Option) *TranscriptStore {
	o := resolve("arena:transcript:", opts)
	return &TranscriptStore{
		client: client,
		prefix: o.prefix,
		ttl:    o.ttl,
	}
}

func (s *TranscriptStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *TranscriptStore) indexKey() string {
	return s.prefix + "index"
}

// Append pushes the turn at the tail of the session list.
func (s *TranscriptStore) Append(ctx context.Context, sessionKey string, turn domain.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(sessionKey), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionKey), s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  expiryScore(s.ttl),
		Member: sessionKey,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn to redis: %w", err)
	}
	return nil
}

// Load returns every turn of the session in order.
func (s *TranscriptStore) Load(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	vals, err := s.client.LRange(ctx, s.key(sessionKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	turns := make([]domain.Turn, 0, len(vals))
	for _, v := range vals {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Delete removes the transcript.
func (s *TranscriptStore) Delete(ctx context.Context, sessionKey string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionKey))
	pipe.ZRem(ctx, s.indexKey(), sessionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns session keys with a live transcript.
func (s *TranscriptStore) List(ctx context.Context) ([]string, error) {
	return listIndex(ctx, s.client, s.indexKey())
}
