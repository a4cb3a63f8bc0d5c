package refusal

import "sort"

// Fixed detail strings. These form a closed set so verdict output is fully
// deterministic and diffable; never interpolate runtime values here.
const (
	DetailCapsuleMutated  = "snapshot mutated under refusal path (before != after)"
	DetailImpossibleFlag  = "impossible worldline flagged"
	DetailAnchorsZeroed   = "anchors zeroed, lineage undefined"
	DetailDegenerateRoots = "prev_root equals merkle_root"
	DetailBioIntrusion    = "biological intrusion flag asserted"
	DetailChemicalSpike   = "chemical concentration exceeds policy maximum"
	DetailInstrumentDrift = "drift exceeds threshold"
	DetailKaiserFloorLow  = "floor below minimum"
)

// EvalOptions carries the optional digest hook. The zero value selects the
// reference fold digest.
type EvalOptions struct {
	Digest DigestFunc
}

// Evaluate runs the stage-5 refusal contract: pure, total, no side effects.
// Every applicable check runs; there is no early exit. All anomalies are
// findings in the returned verdict, never errors.
func Evaluate(
	before SceneCapsule,
	after SceneCapsule,
	cfg EmulatorConfig,
	tel ContaminationTelemetry,
	policy RefusalPolicy,
) RefusalVerdict {
	return EvaluateWithOptions(before, after, cfg, tel, policy, EvalOptions{})
}

func EvaluateWithOptions(
	before SceneCapsule,
	after SceneCapsule,
	cfg EmulatorConfig,
	tel ContaminationTelemetry,
	policy RefusalPolicy,
	opts EvalOptions,
) RefusalVerdict {
	digest := opts.Digest
	if digest == nil {
		digest = FoldCapsuleDigest
	}

	findings := make([]RefusalFinding, 0, 4)

	// The evaluator is required to be call-pure: if its two input views
	// differ, something upstream broke purity. That is itself a
	// constitutional violation.
	if digest(before) != digest(after) {
		findings = append(findings, RefusalFinding{
			Class:  ClassWorldlineImpossibility,
			Detail: DetailCapsuleMutated,
		})
	}

	// Stage-3 abortion propagates; a live planner flag halts equally.
	if before.Stage3ImpossibleWorldline || tel.WorldlineImpossible {
		findings = append(findings, RefusalFinding{
			Class:  ClassWorldlineImpossibility,
			Detail: DetailImpossibleFlag,
		})
	}

	// Local lineage continuity only; full chain verification is the vault
	// verifier's job. The two checks are independent and may both fire.
	if before.PrevRoot == ([32]byte{}) && before.MerkleRoot == ([32]byte{}) {
		findings = append(findings, RefusalFinding{
			Class:  ClassLineageBreak,
			Detail: DetailAnchorsZeroed,
		})
	}
	if before.PrevRoot == before.MerkleRoot {
		findings = append(findings, RefusalFinding{
			Class:  ClassLineageBreak,
			Detail: DetailDegenerateRoots,
		})
	}

	if tel.BiologicalIntrusion {
		findings = append(findings, RefusalFinding{
			Class:  ClassBiologicalIntrusion,
			Detail: DetailBioIntrusion,
		})
	}

	// One finding even when both concentrations exceed their maxima.
	if tel.AcetaldehydePPM > policy.AcetaldehydePPMMax || tel.EthanolPPM > policy.EthanolPPMMax {
		findings = append(findings, RefusalFinding{
			Class:  ClassChemicalSpike,
			Detail: DetailChemicalSpike,
		})
	}

	if tel.InstrumentDriftMM > policy.InstrumentDriftMMMax {
		findings = append(findings, RefusalFinding{
			Class:  ClassInstrumentDrift,
			Detail: DetailInstrumentDrift,
		})
	}

	// Floor breach shares the drift class but is a separate condition; when
	// both fire the drift finding stays first within the class.
	if cfg.KaiserFloor < policy.KaiserFloorMin {
		findings = append(findings, RefusalFinding{
			Class:  ClassInstrumentDrift,
			Detail: DetailKaiserFloorLow,
		})
	}

	// Stable sort: equal-class findings keep emission order.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Class.Priority() < findings[j].Class.Priority()
	})

	if len(findings) == 0 {
		return RefusalVerdict{OK: true, NextPhase: PhaseVerifying, Findings: findings}
	}
	return RefusalVerdict{OK: false, NextPhase: PhaseHalted, Findings: findings}
}
