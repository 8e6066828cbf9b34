package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is the discriminator of wire events.
type EventType string

const (
	EventStartExchange EventType = "start_exchange"
	// EventStartDebate is the spelling used by early clients.
	EventStartDebate  EventType = "start_debate"
	EventHistory      EventType = "history"
	EventStatus       EventType = "status"
	EventSystemNotice EventType = "system-notice"
)

// InboundEvent is an observer-originated event.
type InboundEvent struct {
	Type  EventType `json:"type"`
	Topic string    `json:"topic,omitempty"`
}

// Known reports whether the hub handles this event type.
func (e InboundEvent) Known() bool {
	return e.Type == EventStartExchange || e.Type == EventStartDebate
}

// ParseInbound strictly decodes an inbound frame.
// It returns ErrMalformedEvent for invalid JSON, unexpected fields or a missing type.
func ParseInbound(raw []byte) (InboundEvent, error) {
	var ev InboundEvent
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if dec.More() {
		return InboundEvent{}, fmt.Errorf("%w: trailing data", ErrMalformedEvent)
	}
	if ev.Type == "" {
		return InboundEvent{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if ev.Type == EventStartDebate {
		ev.Type = EventStartExchange
	}
	ev.Topic = strings.TrimSpace(ev.Topic)
	return ev, nil
}

// historyEvent is sent once to every newly attached observer.
type historyEvent struct {
	Type EventType `json:"type"`
	Data []Turn    `json:"data"`
}

type statusEvent struct {
	Type   EventType `json:"type"`
	Sender string    `json:"sender"`
}

type noticeEvent struct {
	Type   EventType `json:"type"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
}

// messageEvent has no type field: absence of type means message.
type messageEvent struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// EncodeHistory serializes the history frame.
func EncodeHistory(turns []Turn) ([]byte, error) {
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(historyEvent{Type: EventHistory, Data: turns})
}

// EncodeTurn serializes a turn into its outbound frame.
func EncodeTurn(t Turn) ([]byte, error) {
	switch t.Kind {
	case KindStatus:
		return json.Marshal(statusEvent{Type: EventStatus, Sender: t.Sender})
	case KindSystemNotice:
		return json.Marshal(noticeEvent{Type: EventSystemNotice, Sender: t.Sender, Text: t.Text})
	case KindMessage, "":
		return json.Marshal(messageEvent{Sender: t.Sender, Text: t.Text})
	default:
		return nil, fmt.Errorf("unknown turn kind %q", t.Kind)
	}
}

// StepEvent describes a step transition of a run.
type StepEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	RunID      string        `json:"run_id"`
	SessionKey string        `json:"session_key"`
	Step       StepName      `json:"step"`
	Kind       string        `json:"kind"`
	Sender     string        `json:"sender"`
	Attempt    int           `json:"attempt"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// RunEvent describes the end of a run.
type RunEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	SessionKey string    `json:"session_key"`
	Status     RunStatus `json:"status"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnStepStart    func(context.Context, *StepEvent)
	OnStepComplete func(context.Context, *StepEvent)
	OnStepFail     func(context.Context, *StepEvent)
	OnRunFinish    func(context.Context, *RunEvent)
}

// ChatMessage is one entry of a prompt sent to the generation backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)
