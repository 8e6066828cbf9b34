package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aretw0/arena/pkg/domain"
)

const styleGuidelines = `Style Guidelines:
1. Be conversational and punchy.
2. Use Markdown.
3. Speak entirely in the first person.
4. End with a strong, personal concluding sentence.
5. Keep it concise.`

// DefaultPersonaA argues for the topic.
const DefaultPersonaA = `You are Agent A, a witty, passionate, and optimistic debater.
Your Goal: Argue FOR the topic.`

// DefaultPersonaB refutes Agent A.
const DefaultPersonaB = `You are Agent B, a skeptical and sharp-witted debater.
Your Goal: Refute Agent A and the topic.`

// Personas holds the system prompts of both participants.
// Style guidelines are appended to each.
type Personas struct {
	A string `mapstructure:"a"`
	B string `mapstructure:"b"`
}

// DefaultPersonas returns the built-in prompts.
func DefaultPersonas() Personas {
	return Personas{A: DefaultPersonaA, B: DefaultPersonaB}
}

func (p Personas) withDefaults() Personas {
	if strings.TrimSpace(p.A) == "" {
		p.A = DefaultPersonaA
	}
	if strings.TrimSpace(p.B) == "" {
		p.B = DefaultPersonaB
	}
	return p
}

// Prompt builds the messages for a generate step.
// Agent A sees the context window and the topic; Agent B sees what A said.
func (p Personas) Prompt(step Step, run *domain.Run) ([]domain.ChatMessage, error) {
	p = p.withDefaults()

	switch step.Name {
	case domain.StepGenA:
		return []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: p.A + "\n\n" + styleGuidelines},
			{Role: domain.RoleUser, Content: fmt.Sprintf("Context: %s\n\nTopic: %s", FormatContext(run.Context), run.Topic)},
		}, nil
	case domain.StepGenB:
		said, ok := run.Output(domain.StepGenA)
		if !ok {
			return nil, fmt.Errorf("%s requires a completed %s", step.Name, domain.StepGenA)
		}
		return []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: p.B + "\n\n" + styleGuidelines},
			{Role: domain.RoleUser, Content: "Agent A said: " + said},
		}, nil
	default:
		return nil, fmt.Errorf("no prompt for step %s", step.Name)
	}
}

// FormatContext renders turns as "sender: text" lines.
func FormatContext(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Sender+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}
