package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func scenarioYAML(expect string) string {
	return fmt.Sprintf(`
schema_id: cie.refusal.scenario
schema_version: "1.0.0"
name: fermentation-clean-pass
capsule:
  scene_id: batavia.1924.fermentation.v1
  world_id: world:batavia-lab
  corridor_id: corridor:fermentation-dynamics
  finality_tag: 2026.GOLD
  genesis_hash_sha256: %s
  vaulted_blob_sha256: %s
  merkle_root: %s
  prev_root: %s
config:
  build_id: %s
  config_hash_sha256: %s
  max_frame_delta_us: 1490
  kaiser_floor: 0.985
telemetry:
  acetaldehyde_ppm: 10.0
  ethanol_ppm: 200.0
  instrument_drift_mm: 0.0
%s`,
		strings.Repeat("01", 32),
		strings.Repeat("02", 32),
		strings.Repeat("03", 32),
		strings.Repeat("04", 32),
		strings.Repeat("09", 20),
		strings.Repeat("08", 32),
		expect)
}

func TestParseDocumentYAML(t *testing.T) {
	document, err := ParseDocumentYAML([]byte(scenarioYAML("")))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	if document.Name != "fermentation-clean-pass" {
		t.Fatalf("unexpected name: %s", document.Name)
	}
}

func TestParseDocumentYAMLRejectsBadHeader(t *testing.T) {
	if _, err := ParseDocumentYAML([]byte("schema_id: cie.other.scenario\nname: x\n")); err == nil {
		t.Fatalf("wrong schema_id must be rejected")
	}
	if _, err := ParseDocumentYAML([]byte("schema_version: \"2.0.0\"\nname: x\n")); err == nil {
		t.Fatalf("wrong schema_version must be rejected")
	}
	if _, err := ParseDocumentYAML([]byte("schema_id: cie.refusal.scenario\n")); err == nil {
		t.Fatalf("missing name must be rejected")
	}
}

func TestRunCleanScenarioPasses(t *testing.T) {
	document, err := ParseDocumentYAML([]byte(scenarioYAML(`expect:
  ok: true
  phase: verifying
  classes: []
`)))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	runResult, err := Run(document)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if !runResult.Result.Passed {
		t.Fatalf("clean scenario must pass: %#v", runResult.Result.Mismatches)
	}
	if runResult.Result.SchemaID != "cie.refusal.scenario_result" {
		t.Fatalf("unexpected result schema_id: %s", runResult.Result.SchemaID)
	}
	if len(runResult.Result.PolicyDigest) != 64 {
		t.Fatalf("result must carry the policy digest, got %q", runResult.Result.PolicyDigest)
	}
	if !strings.Contains(runResult.Summary, "passed=true") {
		t.Fatalf("unexpected summary: %s", runResult.Summary)
	}
}

func TestRunExpectationMismatch(t *testing.T) {
	document, err := ParseDocumentYAML([]byte(scenarioYAML(`expect:
  ok: false
  phase: halted
  classes: [CHEMICAL_SPIKE]
`)))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	runResult, err := Run(document)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if runResult.Result.Passed {
		t.Fatalf("mismatched expectations must fail the scenario")
	}
	if len(runResult.Result.Mismatches) != 3 {
		t.Fatalf("expected ok, phase and classes mismatches, got %#v", runResult.Result.Mismatches)
	}
}

func TestRunPolicyOverridesApply(t *testing.T) {
	document, err := ParseDocumentYAML([]byte(scenarioYAML(`policy:
  acetaldehyde_ppm_max: 5.0
expect:
  ok: false
  phase: halted
  classes: [CHEMICAL_SPIKE]
`)))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	runResult, err := Run(document)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if !runResult.Result.Passed {
		t.Fatalf("tightened threshold must trip the spike: %#v", runResult.Result.Mismatches)
	}
}

func TestRunAfterCapsuleMutation(t *testing.T) {
	mutated := strings.Replace(scenarioYAML(""), "name: fermentation-clean-pass", "name: mutation-case", 1)
	mutated += fmt.Sprintf(`after:
  scene_id: batavia.1924.fermentation.v1.MUTATED
  world_id: world:batavia-lab
  corridor_id: corridor:fermentation-dynamics
  finality_tag: 2026.GOLD
  genesis_hash_sha256: %s
  vaulted_blob_sha256: %s
  merkle_root: %s
  prev_root: %s
expect:
  ok: false
  phase: halted
  classes: [WORLDLINE_IMPOSSIBILITY]
`,
		strings.Repeat("01", 32),
		strings.Repeat("02", 32),
		strings.Repeat("03", 32),
		strings.Repeat("04", 32))

	document, err := ParseDocumentYAML([]byte(mutated))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	runResult, err := Run(document)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if !runResult.Result.Passed {
		t.Fatalf("mutation scenario must match expectations: %#v", runResult.Result.Mismatches)
	}
}

func TestRunNoExpectationsAlwaysPasses(t *testing.T) {
	document, err := ParseDocumentYAML([]byte(scenarioYAML("")))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	runResult, err := Run(document)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if !runResult.Result.Passed {
		t.Fatalf("scenario without expectations must pass")
	}
}

func TestRunRejectsInvalidCapsule(t *testing.T) {
	broken := strings.Replace(scenarioYAML(""), strings.Repeat("01", 32), "zz", 1)
	document, err := ParseDocumentYAML([]byte(broken))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	if _, err := Run(document); err == nil {
		t.Fatalf("invalid capsule anchor must fail the run")
	}
}

func TestLoadDocumentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML("")), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	document, err := LoadDocumentFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if document.Name == "" {
		t.Fatalf("loaded scenario missing name")
	}
	if _, err := LoadDocumentFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing scenario file must error")
	}
}

func TestBoundedSummaryTruncates(t *testing.T) {
	result := Result{
		Name:      strings.Repeat("n", 400),
		NextPhase: "verifying",
	}
	summary := boundedSummary(result, 100)
	if len(summary) != 100 {
		t.Fatalf("summary must be bounded to 100 chars, got %d", len(summary))
	}
	if !strings.Contains(summary, "...(+") {
		t.Fatalf("truncated summary must carry the overflow marker: %s", summary)
	}
}
