package wizard

// Step is one ordinal stage of the authoring wizard.
type Step int

const (
	StepGeneral Step = iota
	StepRisksTools
	StepPPEControls
	StepForms
	StepApprovals
	StepSummary
)

// StepCount is the number of wizard steps.
const StepCount = 6

func (s Step) String() string {
	switch s {
	case StepGeneral:
		return "general"
	case StepRisksTools:
		return "risks_tools"
	case StepPPEControls:
		return "ppe_controls"
	case StepForms:
		return "forms"
	case StepApprovals:
		return "approvals"
	case StepSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Valid reports whether s is within the wizard's step range.
func (s Step) Valid() bool { return s >= StepGeneral && s <= StepSummary }
