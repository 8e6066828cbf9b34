package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/transcript"
)

// ErrClosed is returned when calling a hub that has been stopped.
var ErrClosed = errors.New("hub closed")

// Connection is one attached observer.
// Send must not block: implementations queue the frame and report an error when they cannot.
type Connection interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Hub owns one session's transcript and its live observers.
type Hub struct {
	key    string
	cfg    config
	logger *slog.Logger

	// Owned by the loop goroutine.
	transcript *transcript.Transcript
	conns      map[string]Connection

	mailbox chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a hub for sessionKey and starts its loop.
// If a transcript store is configured, the transcript is restored before any command runs.
func New(ctx context.Context, sessionKey string, opts ...Option) *Hub {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Hub{
		key:        sessionKey,
		cfg:        cfg,
		logger:     cfg.logger.With("session_id", sessionKey),
		transcript: transcript.New(),
		conns:      make(map[string]Connection),
		mailbox:    make(chan func(), cfg.mailbox),
		ctx:        hctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.loop()
	return h
}

// Key returns the session key.
func (h *Hub) Key() string {
	return h.key
}

func (h *Hub) loop() {
	defer close(h.done)

	h.restore()

	for {
		select {
		case cmd := <-h.mailbox:
			cmd()
		case <-h.ctx.Done():
			for id, c := range h.conns {
				h.remove(id)
				_ = c.Close()
			}
			return
		}
	}
}

func (h *Hub) restore() {
	if h.cfg.store == nil {
		return
	}
	turns, err := h.cfg.store.Load(h.ctx, h.key)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Error("failed to restore transcript, starting empty", "err", err)
		}
		return
	}
	h.transcript = transcript.Restore(turns)
	h.logger.Debug("transcript restored", "turns", len(turns))
}

// call runs fn on the loop goroutine and waits for its result.
func (h *Hub) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	cmd := func() { result <- fn() }

	select {
	case h.mailbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

// Attach registers an observer and immediately sends it the history.
func (h *Hub) Attach(ctx context.Context, conn Connection) error {
	return h.call(ctx, func() error {
		frame, err := domain.EncodeHistory(h.transcript.Snapshot())
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}
		if err := conn.Send(frame); err != nil {
			derr := &domain.DeliveryError{ConnID: conn.ID(), Err: err}
			h.deliveryFailed(derr)
			_ = conn.Close()
			return derr
		}
		h.conns[conn.ID()] = conn
		h.logger.Debug("observer attached", "conn_id", conn.ID(), "observers", len(h.conns))
		if h.cfg.hooks.OnAttach != nil {
			h.cfg.hooks.OnAttach(h.key)
		}
		return nil
	})
}

// Detach removes an observer. Detaching an unknown connection is a no-op.
func (h *Hub) Detach(ctx context.Context, conn Connection) error {
	return h.call(ctx, func() error {
		h.remove(conn.ID())
		return nil
	})
}

func (h *Hub) remove(id string) bool {
	if _, ok := h.conns[id]; !ok {
		return false
	}
	delete(h.conns, id)
	h.logger.Debug("observer detached", "conn_id", id, "observers", len(h.conns))
	if h.cfg.hooks.OnDetach != nil {
		h.cfg.hooks.OnDetach(h.key)
	}
	return true
}

// HandleFrame parses a raw observer frame and handles it.
// Malformed frames are dropped; the hub never fails because of them.
func (h *Hub) HandleFrame(ctx context.Context, raw []byte) error {
	ev, err := domain.ParseInbound(raw)
	if err != nil {
		h.logger.Debug("dropping malformed inbound event", "err", err)
		if h.cfg.hooks.OnMalformed != nil {
			h.cfg.hooks.OnMalformed(h.key, err)
		}
		return nil
	}
	return h.HandleInbound(ctx, ev)
}

// HandleInbound accepts an observer-originated event.
// A start_exchange appends the topic as a user turn and hands a new run to the launcher
// without waiting for it. Other event types are ignored.
func (h *Hub) HandleInbound(ctx context.Context, ev domain.InboundEvent) error {
	if !ev.Known() {
		h.logger.Debug("ignoring inbound event", "type", ev.Type)
		return nil
	}
	if ev.Topic == "" {
		return nil
	}

	return h.call(ctx, func() error {
		turn := domain.Message(domain.SenderUser, ev.Topic)
		turn.At = time.Now().UTC()

		// The run is persisted before the user turn so an accepted start is never lost.
		window := h.transcript.TailWindow(h.cfg.window - 1)
		window = append(window, turn)
		run := domain.NewRun(h.cfg.newID(), h.key, ev.Topic, window)

		if h.cfg.launcher != nil {
			if err := h.cfg.launcher.Submit(ctx, run); err != nil {
				h.logger.Error("failed to launch run", "err", err)
				if cerr := h.commit(ctx, turn); cerr != nil {
					h.logger.Error("failed to record topic", "err", cerr)
				}
				_ = h.commit(ctx, domain.SystemNotice("The exchange could not be started. Please try again."))
				return fmt.Errorf("launch run: %w", err)
			}
		}

		if err := h.commit(ctx, turn); err != nil {
			return err
		}
		h.logger.Info("exchange started", "run_id", run.ID, "context_turns", len(window))
		return nil
	})
}

// PostResult appends a turn and fans it out.
// Status turns are fanned out only; empty message turns are dropped.
func (h *Hub) PostResult(ctx context.Context, turn domain.Turn) error {
	turn = turn.Normalize()
	if turn.IsNoop() {
		return nil
	}
	if !turn.Kind.Valid() {
		return fmt.Errorf("unknown turn kind %q", turn.Kind)
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}

	return h.call(ctx, func() error {
		if !turn.Persisted() {
			h.fanOut(turn)
			return nil
		}
		return h.commit(ctx, turn)
	})
}

// commit persists a turn, then fans it out. Must run on the loop goroutine.
func (h *Hub) commit(ctx context.Context, turn domain.Turn) error {
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	if h.cfg.store != nil {
		if err := h.cfg.store.Append(ctx, h.key, turn); err != nil {
			return fmt.Errorf("failed to persist turn: %w", err)
		}
	}
	h.transcript.Append(turn)
	h.fanOut(turn)
	return nil
}

func (h *Hub) fanOut(turn domain.Turn) {
	frame, err := domain.EncodeTurn(turn)
	if err != nil {
		h.logger.Error("failed to encode turn", "err", err)
		return
	}

	for id, c := range h.conns {
		if err := c.Send(frame); err != nil {
			derr := &domain.DeliveryError{ConnID: id, Err: err}
			h.deliveryFailed(derr)
			h.remove(id)
			_ = c.Close()
		}
	}

	if h.cfg.hooks.OnTurn != nil {
		h.cfg.hooks.OnTurn(h.key, turn)
	}
}

func (h *Hub) deliveryFailed(err *domain.DeliveryError) {
	h.logger.Warn("observer delivery failed, detaching", "conn_id", err.ConnID, "err", err.Err)
	if h.cfg.hooks.OnDeliveryError != nil {
		h.cfg.hooks.OnDeliveryError(h.key, err)
	}
}

// Snapshot returns the transcript in order.
func (h *Hub) Snapshot(ctx context.Context) ([]domain.Turn, error) {
	var out []domain.Turn
	err := h.call(ctx, func() error {
		out = h.transcript.Snapshot()
		return nil
	})
	return out, err
}

// Context returns the last n turns of the transcript.
func (h *Hub) Context(ctx context.Context, n int) ([]domain.Turn, error) {
	var out []domain.Turn
	err := h.call(ctx, func() error {
		out = h.transcript.TailWindow(n)
		return nil
	})
	return out, err
}

// Observers returns the number of attached connections.
func (h *Hub) Observers(ctx context.Context) (int, error) {
	var n int
	err := h.call(ctx, func() error {
		n = len(h.conns)
		return nil
	})
	return n, err
}

// Stop closes every connection and ends the loop.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}
