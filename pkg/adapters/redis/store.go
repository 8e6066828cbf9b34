package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of entries without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.RunStore using Redis.
// Each run is a JSON string; a sorted set indexes live run IDs by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Redis stores.
type Option func(*options)

type options struct {
	prefix string
	ttl    time.Duration
}

// WithTTL sets the expiration for stored keys.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func resolve(defaultPrefix string, opts []Option) options {
	o := options{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates a go-redis client for the given address.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewFromClient creates a new Redis run store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	o := resolve("arena:run:", opts)
	return &Store{
		client: client,
		prefix: o.prefix,
		ttl:    o.ttl,
	}
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the run to Redis.
func (s *Store) Save(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(run.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  expiryScore(s.ttl),
		Member: run.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	return nil
}

// Load retrieves the run from Redis.
func (s *Store) Load(ctx context.Context, runID string) (*domain.Run, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(val, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	if run.State.Steps == nil {
		run.State.Steps = make(map[domain.StepName]domain.StepRecord)
	}
	return &run, nil
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored run IDs, pruning expired index entries lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return listIndex(ctx, s.client, s.indexKey())
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func expiryScore(ttl time.Duration) float64 {
	if ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(ttl).Unix())
}

func listIndex(ctx context.Context, client *backend.Client, indexKey string) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := client.ZRemRangeByScore(ctx, indexKey, "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}

	ids, err := client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list index: %w", err)
	}
	return ids, nil
}
