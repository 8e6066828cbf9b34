// Package transcript implements the ordered, append-only log of turns for one session.
//
// A Transcript is not safe for concurrent use: the owning hub serializes every call.
package transcript

import "github.com/aretw0/arena/pkg/domain"

// Transcript is an append-only sequence of persisted turns.
type Transcript struct {
	turns []domain.Turn
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Restore creates a transcript seeded with previously persisted turns.
func Restore(turns []domain.Turn) *Transcript {
	t := &Transcript{turns: make([]domain.Turn, len(turns))}
	copy(t.turns, turns)
	return t
}

// Append adds a turn at the end and returns its zero-based position.
func (t *Transcript) Append(turn domain.Turn) int {
	t.turns = append(t.turns, turn)
	return len(t.turns) - 1
}

// Snapshot returns a copy of every turn in insertion order.
func (t *Transcript) Snapshot() []domain.Turn {
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// TailWindow returns the last n turns in order, or fewer if the transcript is shorter.
func (t *Transcript) TailWindow(n int) []domain.Turn {
	if n <= 0 {
		return []domain.Turn{}
	}
	start := len(t.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Turn, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}
