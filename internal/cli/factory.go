package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aretw0/arena/internal/config"
	"github.com/aretw0/arena/pkg/adapters/file"
	"github.com/aretw0/arena/pkg/adapters/memory"
	"github.com/aretw0/arena/pkg/adapters/openai"
	"github.com/aretw0/arena/pkg/adapters/redis"
	"github.com/aretw0/arena/pkg/adapters/scripted"
	"github.com/aretw0/arena/pkg/ports"
)

// Stores bundles the persistence chosen by store.backend.
type Stores struct {
	Runs        ports.RunStore
	Transcripts ports.TranscriptStore
	// Locker is set only for backends shared between processes.
	Locker ports.DistributedLocker

	close func() error
}

// Close releases backend connections.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores creates the run and transcript stores for cfg.
func OpenStores(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	switch cfg.Backend {
	case "memory":
		return &Stores{
			Runs:        memory.NewStore(),
			Transcripts: memory.NewTranscriptStore(),
		}, nil

	case "file":
		return &Stores{
			Runs:        file.New(filepath.Join(cfg.Dir, "runs")),
			Transcripts: file.NewTranscriptStore(filepath.Join(cfg.Dir, "transcripts")),
		}, nil

	case "redis":
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
		}
		runs := redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix+"run:"),
			redis.WithTTL(cfg.Redis.TTL),
		)
		return &Stores{
			Runs: runs,
			Transcripts: redis.NewTranscriptStore(client,
				redis.WithPrefix(cfg.Redis.Prefix+"transcript:"),
				redis.WithTTL(cfg.Redis.TTL),
			),
			Locker: redis.NewLocker(client, cfg.Redis.Prefix),
			close:  runs.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewGenerator creates the generation backend for cfg.
func NewGenerator(cfg config.GeneratorConfig) (ports.Generator, error) {
	switch cfg.Backend {
	case "scripted":
		return scripted.New(cfg.Delay), nil
	case "openai":
		gen, err := openai.New(openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, errors.New("unknown generator backend " + cfg.Backend)
	}
}
