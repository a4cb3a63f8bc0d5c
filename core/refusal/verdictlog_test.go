package refusal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batavialab/cie/core/sign"
)

func haltedVerdict() RefusalVerdict {
	capsule := mkCapsule()
	tel := mkTelemetry()
	tel.AcetaldehydePPM = 999.0
	return Evaluate(capsule, capsule, mkConfig(), tel, DefaultPolicy())
}

func TestBuildVerdictRecordDefaults(t *testing.T) {
	verdict := haltedVerdict()
	record := BuildVerdictRecord(verdict, EmitVerdictOptions{PolicyDigest: "abc"})

	if record.SchemaID != "cie.refusal.verdict" || record.SchemaVersion != "1.0.0" {
		t.Fatalf("unexpected schema header: %s %s", record.SchemaID, record.SchemaVersion)
	}
	if record.ProducerVersion != "0.0.0-dev" {
		t.Fatalf("empty producer must default, got %s", record.ProducerVersion)
	}
	if record.DigestMode != DigestModeFold {
		t.Fatalf("empty digest mode must default to fold, got %s", record.DigestMode)
	}
	want := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !record.CreatedAt.Equal(want) {
		t.Fatalf("zero created_at must pin to the epoch placeholder, got %s", record.CreatedAt)
	}
	if record.OK || record.NextPhase != "halted" {
		t.Fatalf("verdict fields must carry through: %#v", record)
	}
	if len(record.Findings) != 1 || record.Findings[0].Class != "CHEMICAL_SPIKE" {
		t.Fatalf("findings must serialize display names: %#v", record.Findings)
	}
	if len(record.VerdictID) != 24 {
		t.Fatalf("verdict_id must be 24 hex chars, got %q", record.VerdictID)
	}
}

func TestBuildVerdictRecordIDDeterministic(t *testing.T) {
	verdict := haltedVerdict()
	opts := EmitVerdictOptions{PolicyDigest: "abc", DigestMode: DigestModeJCS}
	first := BuildVerdictRecord(verdict, opts)
	second := BuildVerdictRecord(verdict, opts)
	if first.VerdictID != second.VerdictID {
		t.Fatalf("verdict id must be deterministic")
	}

	other := BuildVerdictRecord(verdict, EmitVerdictOptions{PolicyDigest: "different"})
	if other.VerdictID == first.VerdictID {
		t.Fatalf("verdict id must cover the policy digest")
	}
}

func TestEmitVerdictRecordWritesArtifactAndHistory(t *testing.T) {
	dir := t.TempDir()
	verdictPath := filepath.Join(dir, "out", "verdict.json")
	historyPath := filepath.Join(dir, "history.jsonl")

	verdict := haltedVerdict()
	opts := EmitVerdictOptions{
		PolicyDigest: "abc",
		VerdictPath:  verdictPath,
		HistoryPath:  historyPath,
	}
	result, err := EmitVerdictRecord(verdict, opts)
	if err != nil {
		t.Fatalf("emit verdict: %v", err)
	}
	if result.VerdictPath != verdictPath || result.HistoryPath != historyPath {
		t.Fatalf("paths not echoed: %#v", result)
	}

	read, err := ReadVerdictRecord(verdictPath)
	if err != nil {
		t.Fatalf("read verdict back: %v", err)
	}
	if read.VerdictID != result.Record.VerdictID {
		t.Fatalf("written record mismatch: %s vs %s", read.VerdictID, result.Record.VerdictID)
	}

	// Second emit appends a second history line.
	if _, err := EmitVerdictRecord(verdict, opts); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	historyFile, err := os.Open(historyPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer historyFile.Close()
	lines := 0
	scanner := bufio.NewScanner(historyFile)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("history line %d not json: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 history lines, got %d", lines)
	}
}

func TestEmitVerdictRecordSigned(t *testing.T) {
	kp, err := sign.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	verdict := haltedVerdict()
	result, err := EmitVerdictRecord(verdict, EmitVerdictOptions{
		PolicyDigest:      "abc",
		SigningPrivateKey: kp.Private,
	})
	if err != nil {
		t.Fatalf("emit signed verdict: %v", err)
	}
	if result.Record.Signature == nil {
		t.Fatalf("expected signature on record")
	}
	if result.Record.Signature.Alg != sign.AlgEd25519 {
		t.Fatalf("unexpected alg: %s", result.Record.Signature.Alg)
	}

	signable := result.Record
	signable.Signature = nil
	signableRaw, err := json.Marshal(signable)
	if err != nil {
		t.Fatalf("marshal signable: %v", err)
	}
	ok, err := sign.VerifyVerdictRecordJSON(kp.Public, sign.Signature{
		Alg:          result.Record.Signature.Alg,
		KeyID:        result.Record.Signature.KeyID,
		Sig:          result.Record.Signature.Sig,
		SignedDigest: result.Record.Signature.SignedDigest,
	}, signableRaw)
	if err != nil || !ok {
		t.Fatalf("signature must verify over the signable record: ok=%t err=%v", ok, err)
	}
}

func TestEmitVerdictRecordNoSinksIsPure(t *testing.T) {
	verdict := haltedVerdict()
	result, err := EmitVerdictRecord(verdict, EmitVerdictOptions{PolicyDigest: "abc"})
	if err != nil {
		t.Fatalf("emit verdict: %v", err)
	}
	if result.VerdictPath != "" || result.HistoryPath != "" {
		t.Fatalf("no paths configured, none should be reported: %#v", result)
	}
}

func TestReadVerdictRecordErrors(t *testing.T) {
	if _, err := ReadVerdictRecord(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing verdict file must error")
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := ReadVerdictRecord(path); err == nil {
		t.Fatalf("broken verdict file must error")
	}
}
