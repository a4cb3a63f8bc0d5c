package refusal

import "fmt"

// ArmPhase names the processing stages of the surrounding arm state machine.
// The evaluator only ever produces PhaseVerifying or PhaseHalted; the rest
// exist so wire records can round-trip the full machine.
type ArmPhase int

const (
	PhaseOrienting ArmPhase = iota
	PhaseRetrieving
	PhasePlanning
	PhaseGenerating
	PhaseVerifying
	PhaseCorrecting
	PhaseHalted
)

var phaseDisplay = map[ArmPhase]string{
	PhaseOrienting:  "orienting",
	PhaseRetrieving: "retrieving",
	PhasePlanning:   "planning",
	PhaseGenerating: "generating",
	PhaseVerifying:  "verifying",
	PhaseCorrecting: "correcting",
	PhaseHalted:     "halted",
}

func (p ArmPhase) String() string {
	if name, ok := phaseDisplay[p]; ok {
		return name
	}
	return "unknown"
}

func ParsePhase(name string) (ArmPhase, error) {
	for phase, display := range phaseDisplay {
		if display == name {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown phase: %q", name)
}

// IsHalted is the single choke-point callers use to gate further tool use,
// generation, or planning once a verdict has been produced.
func IsHalted(phase ArmPhase) bool {
	return phase == PhaseHalted
}
