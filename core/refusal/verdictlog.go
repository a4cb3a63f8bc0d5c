package refusal

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/batavialab/cie/core/fsx"
	schemarefusal "github.com/batavialab/cie/core/schema/v1/refusal"
	"github.com/batavialab/cie/core/sign"
)

const (
	verdictSchemaID = "cie.refusal.verdict"
	verdictSchemaV1 = "1.0.0"

	DigestModeFold = "fold"
	DigestModeJCS  = "jcs"
)

type EmitVerdictOptions struct {
	ProducerVersion   string
	CreatedAt         time.Time
	DigestMode        string
	BeforeDigest      CapsuleDigest
	AfterDigest       CapsuleDigest
	PolicyDigest      string
	SigningPrivateKey ed25519.PrivateKey
	VerdictPath       string
	HistoryPath       string
}

type EmitVerdictResult struct {
	Record      schemarefusal.VerdictRecord
	VerdictPath string
	HistoryPath string
}

// BuildVerdictRecord renders a verdict into its wire form. Findings keep
// their evaluated order; classes travel as canonical display names.
func BuildVerdictRecord(verdict RefusalVerdict, opts EmitVerdictOptions) schemarefusal.VerdictRecord {
	createdAt := opts.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}
	digestMode := strings.TrimSpace(opts.DigestMode)
	if digestMode == "" {
		digestMode = DigestModeFold
	}

	findings := make([]schemarefusal.FindingRecord, 0, len(verdict.Findings))
	for _, finding := range verdict.Findings {
		findings = append(findings, schemarefusal.FindingRecord{
			Class:  finding.Class.String(),
			Detail: finding.Detail,
		})
	}

	beforeDigest := hex.EncodeToString(opts.BeforeDigest[:])
	afterDigest := hex.EncodeToString(opts.AfterDigest[:])
	return schemarefusal.VerdictRecord{
		SchemaID:        verdictSchemaID,
		SchemaVersion:   verdictSchemaV1,
		CreatedAt:       createdAt,
		ProducerVersion: producerVersion,
		VerdictID:       computeVerdictID(opts.PolicyDigest, beforeDigest, afterDigest, verdict.NextPhase.String()),
		OK:              verdict.OK,
		NextPhase:       verdict.NextPhase.String(),
		Findings:        findings,
		DigestMode:      digestMode,
		BeforeDigest:    beforeDigest,
		AfterDigest:     afterDigest,
		PolicyDigest:    opts.PolicyDigest,
	}
}

// EmitVerdictRecord writes the verdict artifact (atomic) and, when a history
// path is set, appends one JSONL line with a cross-process lock. Signing is
// applied when a private key is supplied.
func EmitVerdictRecord(verdict RefusalVerdict, opts EmitVerdictOptions) (EmitVerdictResult, error) {
	record := BuildVerdictRecord(verdict, opts)

	if len(opts.SigningPrivateKey) > 0 {
		signable := record
		signable.Signature = nil
		signableRaw, err := json.Marshal(signable)
		if err != nil {
			return EmitVerdictResult{}, fmt.Errorf("marshal signable verdict: %w", err)
		}
		signature, err := sign.SignVerdictRecordJSON(opts.SigningPrivateKey, signableRaw)
		if err != nil {
			return EmitVerdictResult{}, fmt.Errorf("sign verdict record: %w", err)
		}
		record.Signature = &schemarefusal.Signature{
			Alg:          signature.Alg,
			KeyID:        signature.KeyID,
			Sig:          signature.Sig,
			SignedDigest: signature.SignedDigest,
		}
	}

	result := EmitVerdictResult{Record: record}

	verdictPath := strings.TrimSpace(opts.VerdictPath)
	if verdictPath != "" {
		if err := WriteVerdictRecord(verdictPath, record); err != nil {
			return EmitVerdictResult{}, err
		}
		result.VerdictPath = verdictPath
	}

	historyPath := strings.TrimSpace(opts.HistoryPath)
	if historyPath != "" {
		line, err := json.Marshal(record)
		if err != nil {
			return EmitVerdictResult{}, fmt.Errorf("marshal verdict history line: %w", err)
		}
		if err := fsx.AppendLineLocked(historyPath, line, 0o600); err != nil {
			return EmitVerdictResult{}, fmt.Errorf("append verdict history: %w", err)
		}
		result.HistoryPath = historyPath
	}

	return result, nil
}

func WriteVerdictRecord(path string, record schemarefusal.VerdictRecord) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create verdict directory: %w", err)
		}
	}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verdict record: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := fsx.WriteFileAtomic(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write verdict record: %w", err)
	}
	return nil
}

func ReadVerdictRecord(path string) (schemarefusal.VerdictRecord, error) {
	// #nosec G304 -- verdict path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return schemarefusal.VerdictRecord{}, fmt.Errorf("read verdict record: %w", err)
	}
	var record schemarefusal.VerdictRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return schemarefusal.VerdictRecord{}, fmt.Errorf("parse verdict record: %w", err)
	}
	return record, nil
}

func computeVerdictID(policyDigest, beforeDigest, afterDigest, phase string) string {
	sum := sha256.Sum256([]byte(policyDigest + ":" + beforeDigest + ":" + afterDigest + ":" + phase))
	return hex.EncodeToString(sum[:12])
}
