package refusal

// ContaminationClass is the closed stage-5 contamination taxonomy. Adding a
// variant requires extending both the display table and the priority table.
type ContaminationClass int

const (
	ClassBiologicalIntrusion ContaminationClass = iota
	ClassChemicalSpike
	ClassInstrumentDrift
	ClassLineageBreak
	ClassWorldlineImpossibility
)

var classDisplay = map[ContaminationClass]string{
	ClassBiologicalIntrusion:    "BIOLOGICAL_INTRUSION",
	ClassChemicalSpike:          "CHEMICAL_SPIKE",
	ClassInstrumentDrift:        "INSTRUMENT_DRIFT",
	ClassLineageBreak:           "LINEAGE_BREAK",
	ClassWorldlineImpossibility: "WORLDLINE_IMPOSSIBILITY",
}

// Sort priority is fixed and independent of declaration order.
var classPriority = map[ContaminationClass]int{
	ClassBiologicalIntrusion:    10,
	ClassChemicalSpike:          20,
	ClassInstrumentDrift:        30,
	ClassLineageBreak:           40,
	ClassWorldlineImpossibility: 50,
}

func (c ContaminationClass) String() string {
	if name, ok := classDisplay[c]; ok {
		return name
	}
	return "UNKNOWN"
}

func (c ContaminationClass) Priority() int {
	if priority, ok := classPriority[c]; ok {
		return priority
	}
	return 0
}

// ParseContaminationClass maps a canonical display name back to its variant.
func ParseContaminationClass(name string) (ContaminationClass, bool) {
	for class, display := range classDisplay {
		if display == name {
			return class, true
		}
	}
	return 0, false
}
