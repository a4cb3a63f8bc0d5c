package refusal

// SceneCapsule is the immutable record of simulated-scene identity and
// integrity anchors at one instant. The evaluator treats it as read-only
// input; it is constructed upstream once per processing cycle.
type SceneCapsule struct {
	SceneID     string
	WorldID     string
	CorridorID  string
	FinalityTag string

	// Content anchors.
	GenesisHashSHA256 [32]byte
	VaultedBlobSHA256 [32]byte

	// Chain anchors (corridor ledger position).
	MerkleRoot [32]byte
	PrevRoot   [32]byte

	// Upstream stage-3 abort propagates through this flag.
	Stage3ImpossibleWorldline bool
}

// EmulatorConfig is the read-only runtime configuration supplied once per
// evaluation.
type EmulatorConfig struct {
	BuildID          [20]byte
	ConfigHashSHA256 [32]byte
	MaxFrameDeltaUS  uint32
	KaiserFloor      float64
}

// ContaminationTelemetry carries the live sensor measurements for one
// evaluation. No history is retained by the core.
type ContaminationTelemetry struct {
	AcetaldehydePPM     float64
	EthanolPPM          float64
	InstrumentDriftMM   float64
	BiologicalIntrusion bool
	WorldlineImpossible bool
}

// RefusalFinding is one detected violation: a taxonomy class plus a fixed,
// pre-written detail string. Details are never built from runtime values so
// verdicts stay byte-diffable.
type RefusalFinding struct {
	Class  ContaminationClass
	Detail string
}

// RefusalVerdict is the evaluator's complete output. Findings are ordered by
// class priority with emission order preserved within a class.
type RefusalVerdict struct {
	OK        bool
	NextPhase ArmPhase
	Findings  []RefusalFinding
}
