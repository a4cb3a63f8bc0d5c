// Package scenario runs declarative refusal cases: one YAML document
// describing capsule, config, telemetry and expectations, evaluated once
// through the refusal contract and compared against the expected outcome.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/batavialab/cie/core/refusal"
	schemarefusal "github.com/batavialab/cie/core/schema/v1/refusal"
)

const (
	scenarioSchemaID       = "cie.refusal.scenario"
	scenarioResultSchemaID = "cie.refusal.scenario_result"
	scenarioSchemaV1       = "1.0.0"
	defaultSummaryLimit    = 240
)

type Document struct {
	SchemaID      string           `yaml:"schema_id"`
	SchemaVersion string           `yaml:"schema_version"`
	Name          string           `yaml:"name"`
	Capsule       capsuleDoc       `yaml:"capsule"`
	After         *capsuleDoc      `yaml:"after"`
	Config        configDoc        `yaml:"config"`
	Telemetry     telemetryDoc     `yaml:"telemetry"`
	Policy        *policyOverrides `yaml:"policy"`
	Expect        Expectation      `yaml:"expect"`
}

type capsuleDoc struct {
	SceneID                   string `yaml:"scene_id"`
	WorldID                   string `yaml:"world_id"`
	CorridorID                string `yaml:"corridor_id"`
	FinalityTag               string `yaml:"finality_tag"`
	GenesisHashSHA256         string `yaml:"genesis_hash_sha256"`
	VaultedBlobSHA256         string `yaml:"vaulted_blob_sha256"`
	MerkleRoot                string `yaml:"merkle_root"`
	PrevRoot                  string `yaml:"prev_root"`
	Stage3ImpossibleWorldline bool   `yaml:"stage3_impossible_worldline"`
}

type configDoc struct {
	BuildID          string  `yaml:"build_id"`
	ConfigHashSHA256 string  `yaml:"config_hash_sha256"`
	MaxFrameDeltaUS  uint32  `yaml:"max_frame_delta_us"`
	KaiserFloor      float64 `yaml:"kaiser_floor"`
}

type telemetryDoc struct {
	AcetaldehydePPM         float64 `yaml:"acetaldehyde_ppm"`
	EthanolPPM              float64 `yaml:"ethanol_ppm"`
	InstrumentDriftMM       float64 `yaml:"instrument_drift_mm"`
	BiologicalIntrusionFlag bool    `yaml:"biological_intrusion_flag"`
	WorldlineImpossibleFlag bool    `yaml:"worldline_impossible_flag"`
}

type policyOverrides struct {
	AcetaldehydePPMMax   *float64 `yaml:"acetaldehyde_ppm_max"`
	EthanolPPMMax        *float64 `yaml:"ethanol_ppm_max"`
	InstrumentDriftMMMax *float64 `yaml:"instrument_drift_mm_max"`
	KaiserFloorMin       *float64 `yaml:"kaiser_floor_min"`
}

type Expectation struct {
	OK      *bool    `yaml:"ok"`
	Phase   string   `yaml:"phase"`
	Classes []string `yaml:"classes"`
}

// Result is the wire form of one scenario run.
type Result struct {
	SchemaID      string                        `json:"schema_id"`
	SchemaVersion string                        `json:"schema_version"`
	Name          string                        `json:"name"`
	Passed        bool                          `json:"passed"`
	OK            bool                          `json:"ok"`
	NextPhase     string                        `json:"next_phase"`
	Findings      []schemarefusal.FindingRecord `json:"findings"`
	Mismatches    []string                      `json:"mismatches"`
	PolicyDigest  string                        `json:"policy_digest"`
}

type RunResult struct {
	Result  Result
	Summary string
}

func LoadDocumentFile(path string) (Document, error) {
	// #nosec G304 -- scenario path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseDocumentYAML(content)
}

func ParseDocumentYAML(data []byte) (Document, error) {
	var document Document
	if err := yaml.Unmarshal(data, &document); err != nil {
		return Document{}, fmt.Errorf("parse scenario yaml: %w", err)
	}
	if document.SchemaID == "" {
		document.SchemaID = scenarioSchemaID
	}
	if document.SchemaID != scenarioSchemaID {
		return Document{}, fmt.Errorf("unsupported scenario schema_id: %s", document.SchemaID)
	}
	if document.SchemaVersion == "" {
		document.SchemaVersion = scenarioSchemaV1
	}
	if document.SchemaVersion != scenarioSchemaV1 {
		return Document{}, fmt.Errorf("unsupported scenario schema_version: %s", document.SchemaVersion)
	}
	if strings.TrimSpace(document.Name) == "" {
		return Document{}, fmt.Errorf("scenario name is required")
	}
	return document, nil
}

// Run evaluates the scenario and compares the verdict with the declared
// expectations. A scenario with no expectations passes on any verdict.
func Run(document Document) (RunResult, error) {
	before, err := capsuleFromDoc(document.Capsule)
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario capsule: %w", err)
	}
	after := before
	if document.After != nil {
		after, err = capsuleFromDoc(*document.After)
		if err != nil {
			return RunResult{}, fmt.Errorf("scenario after capsule: %w", err)
		}
	}
	cfg, err := configFromDoc(document.Config)
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario config: %w", err)
	}
	tel, err := refusal.TelemetryFromRecord(telemetryToRecord(document.Telemetry))
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario telemetry: %w", err)
	}
	policy := resolvePolicy(document.Policy)
	policyDigest, err := refusal.PolicyDigest(policy)
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario policy digest: %w", err)
	}

	verdict := refusal.Evaluate(before, after, cfg, tel, policy)
	mismatches := compareExpectation(document.Expect, verdict)

	findings := make([]schemarefusal.FindingRecord, 0, len(verdict.Findings))
	for _, finding := range verdict.Findings {
		findings = append(findings, schemarefusal.FindingRecord{
			Class:  finding.Class.String(),
			Detail: finding.Detail,
		})
	}

	result := Result{
		SchemaID:      scenarioResultSchemaID,
		SchemaVersion: scenarioSchemaV1,
		Name:          document.Name,
		Passed:        len(mismatches) == 0,
		OK:            verdict.OK,
		NextPhase:     verdict.NextPhase.String(),
		Findings:      findings,
		Mismatches:    mismatches,
		PolicyDigest:  policyDigest,
	}
	return RunResult{Result: result, Summary: boundedSummary(result, defaultSummaryLimit)}, nil
}

func compareExpectation(expect Expectation, verdict refusal.RefusalVerdict) []string {
	mismatches := []string{}
	if expect.OK != nil && verdict.OK != *expect.OK {
		mismatches = append(mismatches, fmt.Sprintf("ok: want %t, got %t", *expect.OK, verdict.OK))
	}
	if expect.Phase != "" && verdict.NextPhase.String() != expect.Phase {
		mismatches = append(mismatches, fmt.Sprintf("phase: want %s, got %s", expect.Phase, verdict.NextPhase))
	}
	if expect.Classes != nil {
		got := make([]string, 0, len(verdict.Findings))
		for _, finding := range verdict.Findings {
			got = append(got, finding.Class.String())
		}
		if strings.Join(got, ",") != strings.Join(expect.Classes, ",") {
			mismatches = append(mismatches, fmt.Sprintf(
				"classes: want [%s], got [%s]",
				strings.Join(expect.Classes, ","),
				strings.Join(got, ","),
			))
		}
	}
	return mismatches
}

func capsuleFromDoc(doc capsuleDoc) (refusal.SceneCapsule, error) {
	return refusal.CapsuleFromRecord(schemarefusal.CapsuleRecord{
		SceneID:                   doc.SceneID,
		WorldID:                   doc.WorldID,
		CorridorID:                doc.CorridorID,
		FinalityTag:               doc.FinalityTag,
		GenesisHashSHA256:         doc.GenesisHashSHA256,
		VaultedBlobSHA256:         doc.VaultedBlobSHA256,
		MerkleRoot:                doc.MerkleRoot,
		PrevRoot:                  doc.PrevRoot,
		Stage3ImpossibleWorldline: doc.Stage3ImpossibleWorldline,
	})
}

func configFromDoc(doc configDoc) (refusal.EmulatorConfig, error) {
	return refusal.ConfigFromRecord(schemarefusal.ConfigRecord{
		BuildID:          doc.BuildID,
		ConfigHashSHA256: doc.ConfigHashSHA256,
		MaxFrameDeltaUS:  doc.MaxFrameDeltaUS,
		KaiserFloor:      doc.KaiserFloor,
	})
}

func telemetryToRecord(doc telemetryDoc) schemarefusal.TelemetryRecord {
	return schemarefusal.TelemetryRecord{
		AcetaldehydePPM:         doc.AcetaldehydePPM,
		EthanolPPM:              doc.EthanolPPM,
		InstrumentDriftMM:       doc.InstrumentDriftMM,
		BiologicalIntrusionFlag: doc.BiologicalIntrusionFlag,
		WorldlineImpossibleFlag: doc.WorldlineImpossibleFlag,
	}
}

func resolvePolicy(overrides *policyOverrides) refusal.RefusalPolicy {
	policy := refusal.DefaultPolicy()
	if overrides == nil {
		return policy
	}
	if overrides.AcetaldehydePPMMax != nil {
		policy.AcetaldehydePPMMax = *overrides.AcetaldehydePPMMax
	}
	if overrides.EthanolPPMMax != nil {
		policy.EthanolPPMMax = *overrides.EthanolPPMMax
	}
	if overrides.InstrumentDriftMMMax != nil {
		policy.InstrumentDriftMMMax = *overrides.InstrumentDriftMMMax
	}
	if overrides.KaiserFloorMin != nil {
		policy.KaiserFloorMin = *overrides.KaiserFloorMin
	}
	return policy
}

func boundedSummary(result Result, maxChars int) string {
	findings := "none"
	if len(result.Findings) > 0 {
		classes := make([]string, 0, len(result.Findings))
		for _, finding := range result.Findings {
			classes = append(classes, finding.Class)
		}
		findings = strings.Join(classes, ",")
	}
	raw := fmt.Sprintf(
		"scenario %s passed=%t ok=%t phase=%s findings=%s",
		result.Name,
		result.Passed,
		result.OK,
		result.NextPhase,
		findings,
	)
	if maxChars <= 0 || len(raw) <= maxChars {
		return raw
	}
	if maxChars <= 12 {
		return raw[:maxChars]
	}
	overflow := len(raw) - maxChars
	suffix := fmt.Sprintf("...(+%d)", overflow)
	keep := maxChars - len(suffix)
	if keep < 0 {
		keep = 0
	}
	return raw[:keep] + suffix
}
