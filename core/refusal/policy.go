package refusal

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/batavialab/cie/core/jcs"
)

const (
	policySchemaID = "cie.refusal.policy"
	policySchemaV1 = "1.0.0"
)

// Defaults match the shipped emulator posture.
const (
	DefaultAcetaldehydePPMMax = 50.0
	DefaultEthanolPPMMax      = 500.0
	DefaultInstrumentDriftMax = 0.000001
	DefaultKaiserFloorMin     = 0.985
)

// RefusalPolicy holds the four guarded thresholds. Thresholds are policy,
// not code: they are always passed into evaluation, never compiled in.
type RefusalPolicy struct {
	AcetaldehydePPMMax   float64
	EthanolPPMMax        float64
	InstrumentDriftMMMax float64
	KaiserFloorMin       float64
}

// PolicyDocument is the versioned on-disk policy form. Pointer fields
// distinguish "absent, use default" from an explicit zero.
type PolicyDocument struct {
	SchemaID             string   `yaml:"schema_id" json:"schema_id"`
	SchemaVersion        string   `yaml:"schema_version" json:"schema_version"`
	AcetaldehydePPMMax   *float64 `yaml:"acetaldehyde_ppm_max" json:"acetaldehyde_ppm_max"`
	EthanolPPMMax        *float64 `yaml:"ethanol_ppm_max" json:"ethanol_ppm_max"`
	InstrumentDriftMMMax *float64 `yaml:"instrument_drift_mm_max" json:"instrument_drift_mm_max"`
	KaiserFloorMin       *float64 `yaml:"kaiser_floor_min" json:"kaiser_floor_min"`
}

func DefaultPolicy() RefusalPolicy {
	return RefusalPolicy{
		AcetaldehydePPMMax:   DefaultAcetaldehydePPMMax,
		EthanolPPMMax:        DefaultEthanolPPMMax,
		InstrumentDriftMMMax: DefaultInstrumentDriftMax,
		KaiserFloorMin:       DefaultKaiserFloorMin,
	}
}

func LoadPolicyFile(path string) (RefusalPolicy, error) {
	// #nosec G304 -- policy path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return RefusalPolicy{}, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicyYAML(content)
}

func ParsePolicyYAML(data []byte) (RefusalPolicy, error) {
	var document PolicyDocument
	if err := yaml.Unmarshal(data, &document); err != nil {
		return RefusalPolicy{}, fmt.Errorf("parse policy yaml: %w", err)
	}
	return normalizePolicy(document)
}

// PolicyDigest returns the sha256-hex JCS digest of the normalized policy so
// verdict artifacts can pin the exact thresholds they were produced under.
func PolicyDigest(policy RefusalPolicy) (string, error) {
	normalized, err := normalizePolicy(policyToDocument(policy))
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(policyToDocument(normalized))
	if err != nil {
		return "", fmt.Errorf("marshal normalized policy: %w", err)
	}
	digest, err := jcs.DigestJCS(raw)
	if err != nil {
		return "", fmt.Errorf("digest policy: %w", err)
	}
	return digest, nil
}

func normalizePolicy(document PolicyDocument) (RefusalPolicy, error) {
	if document.SchemaID == "" {
		document.SchemaID = policySchemaID
	}
	if document.SchemaID != policySchemaID {
		return RefusalPolicy{}, fmt.Errorf("unsupported policy schema_id: %s", document.SchemaID)
	}
	if document.SchemaVersion == "" {
		document.SchemaVersion = policySchemaV1
	}
	if document.SchemaVersion != policySchemaV1 {
		return RefusalPolicy{}, fmt.Errorf("unsupported policy schema_version: %s", document.SchemaVersion)
	}

	policy := DefaultPolicy()
	if document.AcetaldehydePPMMax != nil {
		policy.AcetaldehydePPMMax = *document.AcetaldehydePPMMax
	}
	if document.EthanolPPMMax != nil {
		policy.EthanolPPMMax = *document.EthanolPPMMax
	}
	if document.InstrumentDriftMMMax != nil {
		policy.InstrumentDriftMMMax = *document.InstrumentDriftMMMax
	}
	if document.KaiserFloorMin != nil {
		policy.KaiserFloorMin = *document.KaiserFloorMin
	}

	if err := validateThreshold("acetaldehyde_ppm_max", policy.AcetaldehydePPMMax, false); err != nil {
		return RefusalPolicy{}, err
	}
	if err := validateThreshold("ethanol_ppm_max", policy.EthanolPPMMax, false); err != nil {
		return RefusalPolicy{}, err
	}
	if err := validateThreshold("instrument_drift_mm_max", policy.InstrumentDriftMMMax, false); err != nil {
		return RefusalPolicy{}, err
	}
	if err := validateThreshold("kaiser_floor_min", policy.KaiserFloorMin, true); err != nil {
		return RefusalPolicy{}, err
	}
	return policy, nil
}

func validateThreshold(name string, value float64, allowNegative bool) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("policy threshold %s must be finite", name)
	}
	if !allowNegative && value < 0 {
		return fmt.Errorf("policy threshold %s must be >= 0", name)
	}
	return nil
}

func policyToDocument(policy RefusalPolicy) PolicyDocument {
	return PolicyDocument{
		SchemaID:             policySchemaID,
		SchemaVersion:        policySchemaV1,
		AcetaldehydePPMMax:   &policy.AcetaldehydePPMMax,
		EthanolPPMMax:        &policy.EthanolPPMMax,
		InstrumentDriftMMMax: &policy.InstrumentDriftMMMax,
		KaiserFloorMin:       &policy.KaiserFloorMin,
	}
}
