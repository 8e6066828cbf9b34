package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arena/pkg/adapters/redis"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisTranscriptStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.TranscriptStoreContract(t, redis.NewTranscriptStore(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRun("run-ttl", "room", "topic", nil)))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "run-ttl")

	// Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRun("my-run", "room", "topic", nil)))

	assert.True(t, mr.Exists("custom:app:my-run"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
}

func TestRedisTranscriptStore_UsesList(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewTranscriptStore(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "room", domain.Message(domain.SenderUser, "one")))
	require.NoError(t, store.Append(ctx, "room", domain.Message(domain.SenderAgentA, "two")))

	items, err := mr.List("arena:transcript:room")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
