package orchestrator

import "github.com/aretw0/arena/pkg/domain"

// StepKind is what a step does when executed.
type StepKind string

const (
	KindSignal   StepKind = "signal"   // Post an ephemeral status turn
	KindGenerate StepKind = "generate" // Call the generation backend
	KindPost     StepKind = "post"     // Post the output of a generate step
)

// Step is one entry of the pipeline.
type Step struct {
	Name        domain.StepName
	Kind        StepKind
	Participant string
	// Source is the generate step whose output a post step delivers.
	Source domain.StepName
}

var exchange = []Step{
	{Name: domain.StepSignalA, Kind: KindSignal, Participant: domain.SenderAgentA},
	{Name: domain.StepGenA, Kind: KindGenerate, Participant: domain.SenderAgentA},
	{Name: domain.StepPostA, Kind: KindPost, Participant: domain.SenderAgentA, Source: domain.StepGenA},
	{Name: domain.StepSignalB, Kind: KindSignal, Participant: domain.SenderAgentB},
	{Name: domain.StepGenB, Kind: KindGenerate, Participant: domain.SenderAgentB},
	{Name: domain.StepPostB, Kind: KindPost, Participant: domain.SenderAgentB, Source: domain.StepGenB},
}

// Pipeline returns the ordered steps of an exchange.
func Pipeline() []Step {
	out := make([]Step, len(exchange))
	copy(out, exchange)
	return out
}

// Progress reports how many steps of run are completed, in pipeline order.
func Progress(run *domain.Run) (done, total int) {
	for _, s := range exchange {
		if run.Completed(s.Name) {
			done++
		}
	}
	return done, len(exchange)
}
