package orchestrator

import (
	"testing"
	"time"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	e := NewExecutor(nil, nil, nil, WithRetry(6, 500*time.Millisecond, 3*time.Second))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 3 * time.Second},
		{5, 3 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPipelineOrder(t *testing.T) {
	var names []domain.StepName
	for _, s := range Pipeline() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []domain.StepName{
		domain.StepSignalA, domain.StepGenA, domain.StepPostA,
		domain.StepSignalB, domain.StepGenB, domain.StepPostB,
	}, names)

	run := domain.NewRun("r", "s", "t", nil)
	run.Complete(domain.StepSignalA, "")
	run.Complete(domain.StepGenA, "X")
	done, total := Progress(run)
	assert.Equal(t, 2, done)
	assert.Equal(t, 6, total)
}

func TestPersonas_GenBNeedsGenA(t *testing.T) {
	_, err := DefaultPersonas().Prompt(Step{Name: domain.StepGenB}, domain.NewRun("r", "s", "t", nil))
	assert.Error(t, err)
}

func TestPersonas_OverridesKeepStyleGuidelines(t *testing.T) {
	p := Personas{A: "You are a pirate."}
	msgs, err := p.Prompt(Step{Name: domain.StepGenA}, domain.NewRun("r", "s", "t", nil))
	assert.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "You are a pirate.")
	assert.Contains(t, msgs[0].Content, "Use Markdown.")
	assert.Equal(t, "Context: \n\nTopic: t", msgs[1].Content)
}
