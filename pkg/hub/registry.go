package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arena/pkg/domain"
)

// DefaultSessionKey is used when an observer connects without naming a session.
const DefaultSessionKey = "global-default"

// ErrInvalidSessionKey is returned for keys that cannot address a session.
var ErrInvalidSessionKey = errors.New("invalid session key")

// Registry routes session keys to hubs, creating them on first reference.
// Hubs live until the registry is shut down.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   []Option

	mu       sync.Mutex
	hubs     map[string]*Hub
	launcher Launcher
	closed   bool
}

// NewRegistry creates a registry whose hubs are configured with opts.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	rctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		ctx:    rctx,
		cancel: cancel,
		hubs:   make(map[string]*Hub),
	}
	// Hubs resolve the launcher lazily so it can be wired after the registry exists.
	r.opts = append(append([]Option{}, opts...), WithLauncher(LauncherFunc(r.submit)))
	return r
}

// SetLauncher sets where every hub hands off accepted runs.
func (r *Registry) SetLauncher(l Launcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launcher = l
}

func (r *Registry) submit(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	l := r.launcher
	r.mu.Unlock()

	if l == nil {
		return errors.New("no launcher configured")
	}
	return l.Submit(ctx, run)
}

// Get returns the hub for key, creating it if needed.
func (r *Registry) Get(key string) (*Hub, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if h, ok := r.hubs[key]; ok {
		return h, nil
	}
	h := New(r.ctx, key, r.opts...)
	r.hubs[key] = h
	return h, nil
}

// Lookup returns the hub for key if it is already running.
func (r *Registry) Lookup(key string) (*Hub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[key]
	return h, ok
}

// Keys returns the keys of running hubs, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.hubs))
	for k := range r.hubs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PostResult delivers a turn to the session identified by key.
// It implements ports.Delivery.
func (r *Registry) PostResult(ctx context.Context, sessionKey string, turn domain.Turn) error {
	h, err := r.Get(sessionKey)
	if err != nil {
		return fmt.Errorf("resolve session %q: %w", sessionKey, err)
	}
	return h.PostResult(ctx, turn)
}

// Shutdown stops every hub.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	hubs := make([]*Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		hubs = append(hubs, h)
	}
	r.mu.Unlock()

	r.cancel()
	for _, h := range hubs {
		<-h.done
	}
}

// ValidateKey rejects keys that are empty, too long or contain path or control characters.
func ValidateKey(key string) error {
	if key == "" || len(key) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidSessionKey, key)
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSessionKey, key)
		}
	}
	if key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSessionKey, key)
	}
	return nil
}
