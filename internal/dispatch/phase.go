package dispatch

import (
	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// Phase names a dispatchable step.
type Phase string

const (
	PhaseScan         Phase = "scan"
	PhaseExtraction   Phase = "extraction"
	PhaseGrading      Phase = "grading"
	PhaseVerification Phase = "verification"
	PhaseSynthesis    Phase = "synthesis"
)

// Phases lists the phases accepted by DispatchPhase.
var Phases = []Phase{PhaseScan, PhaseExtraction, PhaseGrading, PhaseVerification, PhaseSynthesis}

// Phase priorities. Lower is more urgent.
const (
	PriorityScan         = 1
	PriorityExtraction   = 2
	PriorityGrading      = 3
	PriorityVerification = 3
	PrioritySynthesis    = 4
	PriorityExploration  = 8
)

// DefaultScanSources are the data sources a scan phase covers when none are
// configured.
var DefaultScanSources = []string{"fred", "bls", "bea", "treasury"}

// ParsePhase validates a phase name.
func ParsePhase(name string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == name {
			return p, nil
		}
	}
	return "", errors.NewValidationError("unknown phase").WithField("phase").WithValue(name)
}

// TaskType returns the task type created for the phase.
func (p Phase) TaskType() taskqueue.Type {
	return taskqueue.Type(p)
}

// Priority returns the priority of the phase's tasks.
func (p Phase) Priority() int {
	switch p {
	case PhaseScan:
		return PriorityScan
	case PhaseExtraction:
		return PriorityExtraction
	case PhaseGrading:
		return PriorityGrading
	case PhaseVerification:
		return PriorityVerification
	case PhaseSynthesis:
		return PrioritySynthesis
	}
	return taskqueue.DefaultPriority
}

// Upstream returns the phase whose tasks this phase consumes, or "" for the
// scan phase.
func (p Phase) Upstream() Phase {
	switch p {
	case PhaseExtraction:
		return PhaseScan
	case PhaseGrading:
		return PhaseExtraction
	case PhaseVerification, PhaseSynthesis:
		return PhaseGrading
	}
	return ""
}
