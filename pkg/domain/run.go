package domain

import (
	"time"
)

// StepName identifies a pipeline step. Names are persisted and must stay stable.
type StepName string

const (
	StepSignalA StepName = "signal-a"
	StepGenA    StepName = "gen-a"
	StepPostA   StepName = "post-a"
	StepSignalB StepName = "signal-b"
	StepGenB    StepName = "gen-b"
	StepPostB   StepName = "post-b"
)

// StepStatus is the checkpoint status of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// RunStatus defines where a run is in its lifecycle.
type RunStatus string

const (
	RunPending   RunStatus = "pending"   // Accepted, not yet picked up by a worker
	RunRunning   RunStatus = "running"   // A worker is executing steps
	RunCompleted RunStatus = "completed" // Terminal: post-b completed
	RunFailed    RunStatus = "failed"    // Terminal: a step exhausted its retries
)

// Terminal reports whether no further automatic action occurs for the status.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// StepRecord is the durable checkpoint of one step.
type StepRecord struct {
	Status    StepStatus `json:"status"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	Attempts  int        `json:"attempts,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunState records the progress of every step of a run.
type RunState struct {
	Status RunStatus               `json:"status"`
	Steps  map[StepName]StepRecord `json:"steps"`
}

// Run is one execution of the exchange pipeline.
type Run struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Topic      string    `json:"topic"`
	Context    []Turn    `json:"context"`
	State      RunState  `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRun creates a pending run with an empty checkpoint table.
func NewRun(id, sessionKey, topic string, window []Turn) *Run {
	now := time.Now().UTC()
	ctx := make([]Turn, len(window))
	copy(ctx, window)
	return &Run{
		ID:         id,
		SessionKey: sessionKey,
		Topic:      topic,
		Context:    ctx,
		State: RunState{
			Status: RunPending,
			Steps:  make(map[StepName]StepRecord),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Step returns the checkpoint for name. Absent steps are reported as pending.
func (r *Run) Step(name StepName) StepRecord {
	if rec, ok := r.State.Steps[name]; ok {
		return rec
	}
	return StepRecord{Status: StepPending}
}

// Completed reports whether name has a committed checkpoint.
func (r *Run) Completed(name StepName) bool {
	return r.Step(name).Status == StepCompleted
}

// Output returns the stored output of a completed step.
func (r *Run) Output(name StepName) (string, bool) {
	rec := r.Step(name)
	if rec.Status != StepCompleted {
		return "", false
	}
	return rec.Output, true
}

// Complete commits output for name.
func (r *Run) Complete(name StepName, output string) {
	rec := r.Step(name)
	rec.Status = StepCompleted
	rec.Output = output
	rec.Error = ""
	rec.Attempts++
	rec.UpdatedAt = time.Now().UTC()
	r.setStep(name, rec)
}

// Fail records a failed attempt for name.
func (r *Run) Fail(name StepName, err error) {
	rec := r.Step(name)
	rec.Status = StepFailed
	if err != nil {
		rec.Error = err.Error()
	}
	rec.Attempts++
	rec.UpdatedAt = time.Now().UTC()
	r.setStep(name, rec)
}

func (r *Run) setStep(name StepName, rec StepRecord) {
	if r.State.Steps == nil {
		r.State.Steps = make(map[StepName]StepRecord)
	}
	r.State.Steps[name] = rec
	r.UpdatedAt = rec.UpdatedAt
}

// Clone returns a deep copy so stores never share memory with callers.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	c.Context = make([]Turn, len(r.Context))
	copy(c.Context, r.Context)
	c.State.Steps = make(map[StepName]StepRecord, len(r.State.Steps))
	for k, v := range r.State.Steps {
		c.State.Steps[k] = v
	}
	return &c
}
