package agent

import (
	"fmt"
	"strings"
)

// transitions lists the edges of the per-turn state machine with their guards.
var transitions = []struct {
	from, to Phase
	label    string
}{
	{PhaseIdentify, PhaseDone, "first greeting"},
	{PhaseIdentify, PhaseOrchestrate, "identified"},
	{PhaseIdentify, PhaseDone, "unresolved"},
	{PhaseOrchestrate, PhaseGenerate, "always"},
	{PhaseGenerate, PhaseDone, "always"},
}

// Mermaid renders the state machine as a Mermaid flowchart.
func Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    start([start]) --> " + PhaseIdentify.String() + "\n")
	for _, t := range transitions {
		to := t.to.String()
		if t.to == PhaseDone {
			to = "done([end])"
		}
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", t.from, t.label, to)
	}
	return b.String()
}
