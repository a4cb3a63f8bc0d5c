package refusal

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPolicyValues(t *testing.T) {
	policy := DefaultPolicy()
	if policy.AcetaldehydePPMMax != 50.0 {
		t.Fatalf("acetaldehyde default = %v", policy.AcetaldehydePPMMax)
	}
	if policy.EthanolPPMMax != 500.0 {
		t.Fatalf("ethanol default = %v", policy.EthanolPPMMax)
	}
	if policy.InstrumentDriftMMMax != 0.000001 {
		t.Fatalf("drift default = %v", policy.InstrumentDriftMMMax)
	}
	if policy.KaiserFloorMin != 0.985 {
		t.Fatalf("floor default = %v", policy.KaiserFloorMin)
	}
}

func TestParsePolicyYAMLOverrides(t *testing.T) {
	policy, err := ParsePolicyYAML([]byte(`
schema_id: cie.refusal.policy
schema_version: "1.0.0"
acetaldehyde_ppm_max: 25.0
kaiser_floor_min: 0.5
`))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	if policy.AcetaldehydePPMMax != 25.0 {
		t.Fatalf("override not applied: %v", policy.AcetaldehydePPMMax)
	}
	if policy.KaiserFloorMin != 0.5 {
		t.Fatalf("override not applied: %v", policy.KaiserFloorMin)
	}
	// Absent fields keep defaults.
	if policy.EthanolPPMMax != DefaultEthanolPPMMax {
		t.Fatalf("absent field must default: %v", policy.EthanolPPMMax)
	}
	if policy.InstrumentDriftMMMax != DefaultInstrumentDriftMax {
		t.Fatalf("absent field must default: %v", policy.InstrumentDriftMMMax)
	}
}

func TestParsePolicyYAMLExplicitZero(t *testing.T) {
	policy, err := ParsePolicyYAML([]byte("acetaldehyde_ppm_max: 0.0\n"))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	if policy.AcetaldehydePPMMax != 0.0 {
		t.Fatalf("explicit zero must not fall back to the default: %v", policy.AcetaldehydePPMMax)
	}
}

func TestParsePolicyYAMLRejectsWrongSchema(t *testing.T) {
	if _, err := ParsePolicyYAML([]byte("schema_id: cie.other.policy\n")); err == nil {
		t.Fatalf("wrong schema_id must be rejected")
	}
	if _, err := ParsePolicyYAML([]byte("schema_version: \"2.0.0\"\n")); err == nil {
		t.Fatalf("wrong schema_version must be rejected")
	}
}

func TestParsePolicyYAMLRejectsBadThresholds(t *testing.T) {
	if _, err := ParsePolicyYAML([]byte("ethanol_ppm_max: -1.0\n")); err == nil {
		t.Fatalf("negative ethanol threshold must be rejected")
	}
	if _, err := ParsePolicyYAML([]byte("acetaldehyde_ppm_max: .nan\n")); err == nil {
		t.Fatalf("NaN threshold must be rejected")
	}
	// The floor may legitimately be negative.
	if _, err := ParsePolicyYAML([]byte("kaiser_floor_min: -0.5\n")); err != nil {
		t.Fatalf("negative kaiser_floor_min must be accepted: %v", err)
	}
}

func TestNormalizePolicyRejectsNonFinite(t *testing.T) {
	inf := math.Inf(1)
	_, err := normalizePolicy(PolicyDocument{InstrumentDriftMMMax: &inf})
	if err == nil {
		t.Fatalf("infinite threshold must be rejected")
	}
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("ethanol_ppm_max: 100.0\n"), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if policy.EthanolPPMMax != 100.0 {
		t.Fatalf("loaded policy mismatch: %v", policy.EthanolPPMMax)
	}

	if _, err := LoadPolicyFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Fatalf("missing policy file must error")
	}
}

func TestPolicyDigestStable(t *testing.T) {
	first, err := PolicyDigest(DefaultPolicy())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	second, err := PolicyDigest(DefaultPolicy())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first != second {
		t.Fatalf("policy digest must be deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 || strings.ToLower(first) != first {
		t.Fatalf("policy digest must be 64 lowercase hex chars: %s", first)
	}
}

func TestPolicyDigestSensitiveToThresholds(t *testing.T) {
	base, err := PolicyDigest(DefaultPolicy())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	changed := DefaultPolicy()
	changed.EthanolPPMMax = 501.0
	other, err := PolicyDigest(changed)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if base == other {
		t.Fatalf("threshold change must change the digest")
	}
}
