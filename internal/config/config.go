// Package config loads the arena configuration.
//
// Sources are layered by viper: built-in defaults, then a config file (YAML,
// TOML or JSON, chosen by extension), then ARENA_* environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ARENA"

// Config is the full arena configuration.
type Config struct {
	Server       ServerConfig          `mapstructure:"server"`
	Store        StoreConfig           `mapstructure:"store"`
	Generator    GeneratorConfig       `mapstructure:"generator"`
	Orchestrator OrchestratorConfig    `mapstructure:"orchestrator"`
	Personas     orchestrator.Personas `mapstructure:"personas"`
	Log          LogConfig             `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // memory, file or redis
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type GeneratorConfig struct {
	Backend   string        `mapstructure:"backend"` // openai or scripted
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// Delay is the simulated latency of the scripted backend.
	Delay time.Duration `mapstructure:"delay"`
}

type OrchestratorConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffMax    time.Duration `mapstructure:"backoff_max"`
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	ContextWindow int           `mapstructure:"context_window"`
	KeepRuns      bool          `mapstructure:"keep_runs"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Default returns the configuration used when no source sets a value.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend: "file",
			Dir:     ".arena",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "arena:",
			},
		},
		Generator: GeneratorConfig{
			Backend: "scripted",
			Model:   "@cf/meta/llama-3.3-70b-instruct-fp8-fast",
			Timeout: orchestrator.DefaultGenerateTimeout,
			Delay:   500 * time.Millisecond,
		},
		Orchestrator: OrchestratorConfig{
			MaxAttempts:   orchestrator.DefaultMaxAttempts,
			BackoffBase:   orchestrator.DefaultBackoffBase,
			BackoffMax:    orchestrator.DefaultBackoffMax,
			Workers:       4,
			QueueSize:     64,
			ContextWindow: 6,
		},
		Personas: orchestrator.DefaultPersonas(),
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers every key of Default on v.
// Keys must be known to viper for environment variables to reach them.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.prefix", d.Store.Redis.Prefix)
	v.SetDefault("store.redis.ttl", d.Store.Redis.TTL)

	v.SetDefault("generator.backend", d.Generator.Backend)
	v.SetDefault("generator.base_url", d.Generator.BaseURL)
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.api_key", d.Generator.APIKey)
	v.SetDefault("generator.max_tokens", d.Generator.MaxTokens)
	v.SetDefault("generator.timeout", d.Generator.Timeout)
	v.SetDefault("generator.delay", d.Generator.Delay)

	v.SetDefault("orchestrator.max_attempts", d.Orchestrator.MaxAttempts)
	v.SetDefault("orchestrator.backoff_base", d.Orchestrator.BackoffBase)
	v.SetDefault("orchestrator.backoff_max", d.Orchestrator.BackoffMax)
	v.SetDefault("orchestrator.workers", d.Orchestrator.Workers)
	v.SetDefault("orchestrator.queue_size", d.Orchestrator.QueueSize)
	v.SetDefault("orchestrator.context_window", d.Orchestrator.ContextWindow)
	v.SetDefault("orchestrator.keep_runs", d.Orchestrator.KeepRuns)
	v.SetDefault("orchestrator.lock_ttl", d.Orchestrator.LockTTL)

	v.SetDefault("personas.a", d.Personas.A)
	v.SetDefault("personas.b", d.Personas.B)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// New returns a viper instance holding the defaults and reading ARENA_* variables,
// e.g. ARENA_STORE_REDIS_ADDR for store.redis.addr.
func New() *viper.Viper {
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs()))
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the flags named in keys (flag name to config key) that exist in fs.
// An unset flag never overrides the other sources.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the optional config file at path into v and decodes the result.
// Unknown keys are rejected.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("config decode failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	switch c.Generator.Backend {
	case "scripted":
	case "openai":
		if strings.TrimSpace(c.Generator.Model) == "" {
			return fmt.Errorf("generator.model is required for the openai backend")
		}
	default:
		return fmt.Errorf("generator.backend: unknown backend %q", c.Generator.Backend)
	}
	if c.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator.max_attempts must be at least 1")
	}
	if c.Orchestrator.Workers < 1 {
		return fmt.Errorf("orchestrator.workers must be at least 1")
	}
	if c.Orchestrator.ContextWindow < 1 {
		return fmt.Errorf("orchestrator.context_window must be at least 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}
