package domain

import (
	"strings"
	"time"
)

// TurnKind classifies what a Turn carries.
type TurnKind string

const (
	KindMessage      TurnKind = "message"       // Persisted content
	KindStatus       TurnKind = "status"        // Ephemeral "producing output" indicator
	KindSystemNotice TurnKind = "system-notice" // Persisted notice emitted by the system
)

// Well-known senders.
const (
	SenderUser   = "User"
	SenderSystem = "System"
	SenderAgentA = "Agent A"
	SenderAgentB = "Agent B"
)

// Turn is one emitted unit of content in a session.
type Turn struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text,omitempty"`
	Kind   TurnKind  `json:"kind"`
	At     time.Time `json:"at,omitempty"`
}

// Message builds a message turn.
func Message(sender, text string) Turn {
	return Turn{Sender: sender, Text: text, Kind: KindMessage}
}

// Status builds an ephemeral status turn for sender.
func Status(sender string) Turn {
	return Turn{Sender: sender, Kind: KindStatus}
}

// SystemNotice builds a persisted notice from the system pseudo-sender.
func SystemNotice(text string) Turn {
	return Turn{Sender: SenderSystem, Text: text, Kind: KindSystemNotice}
}

// IsNoop reports whether the turn must be dropped without storage or fan-out.
func (t Turn) IsNoop() bool {
	return t.Kind == KindMessage && strings.TrimSpace(t.Text) == ""
}

// Persisted reports whether the turn belongs in the transcript.
// Status turns are fanned out only.
func (t Turn) Persisted() bool {
	return t.Kind != KindStatus && !t.IsNoop()
}

// Normalize fills the defaults of a turn received from outside the process.
func (t Turn) Normalize() Turn {
	if t.Kind == "" {
		t.Kind = KindMessage
	}
	return t
}

// Valid reports whether the kind is one of the known kinds.
func (k TurnKind) Valid() bool {
	switch k {
	case KindMessage, KindStatus, KindSystemNotice:
		return true
	}
	return false
}
