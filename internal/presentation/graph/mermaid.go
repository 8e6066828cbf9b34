package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/orchestrator"
)

// GenerateMermaid produces a Mermaid flowchart of the pipeline.
// Shapes follow the step kind:
// - Signal: ((Circle))
// - Generate: [[Subroutine]]
// - Post: [/Parallelogram/]
// If run is set, its checkpoints are drawn as an overlay.
func GenerateMermaid(steps []orchestrator.Step, run *domain.Run) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, step := range steps {
		id := sanitizeMermaidID(string(step.Name))

		opener, closer := "[", "]"
		switch step.Kind {
		case orchestrator.KindSignal:
			opener, closer = "((", "))"
		case orchestrator.KindGenerate:
			opener, closer = "[[", "]]"
		case orchestrator.KindPost:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n", id, opener, step.Name, step.Participant, closer)

		if i+1 < len(steps) {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, sanitizeMermaidID(string(steps[i+1].Name)))
		}
		// Output flows from a generate step to the step that posts it.
		if step.Source != "" {
			fmt.Fprintf(&sb, "    %s -. output .-> %s\n", sanitizeMermaidID(string(step.Source)), id)
		}
	}

	if run != nil {
		writeOverlay(&sb, steps, run)
	}
	return sb.String()
}

func writeOverlay(sb *strings.Builder, steps []orchestrator.Step, run *domain.Run) {
	sb.WriteString("\n    %% Run Overlay\n")
	// Force black text (color:#000) for high-contrast on light backgrounds
	sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

	current := ""
	for _, step := range steps {
		id := sanitizeMermaidID(string(step.Name))
		switch run.Step(step.Name).Status {
		case domain.StepCompleted:
			fmt.Fprintf(sb, "    class %s completed;\n", id)
			continue
		case domain.StepFailed:
			fmt.Fprintf(sb, "    class %s failed;\n", id)
			return
		}
		if current == "" && !run.State.Status.Terminal() {
			current = id
		}
	}
	if current != "" {
		fmt.Fprintf(sb, "    class %s current;\n", current)
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
