package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/batavialab/cie/core/refusal"
	schemarefusal "github.com/batavialab/cie/core/schema/v1/refusal"
	"github.com/batavialab/cie/core/sign"
)

type refuseEvalOutput struct {
	OK           bool                          `json:"ok"`
	Verdict      bool                          `json:"verdict_ok"`
	NextPhase    string                        `json:"next_phase,omitempty"`
	Halted       bool                          `json:"halted"`
	Findings     []schemarefusal.FindingRecord `json:"findings,omitempty"`
	DigestMode   string                        `json:"digest_mode,omitempty"`
	BeforeDigest string                        `json:"before_digest,omitempty"`
	AfterDigest  string                        `json:"after_digest,omitempty"`
	PolicyDigest string                        `json:"policy_digest,omitempty"`
	VerdictID    string                        `json:"verdict_id,omitempty"`
	VerdictPath  string                        `json:"verdict_path,omitempty"`
	HistoryPath  string                        `json:"history_path,omitempty"`
	Warnings     []string                      `json:"warnings,omitempty"`
	Error        string                        `json:"error,omitempty"`
}

func runRefuse(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Evaluate the stage-5 refusal contract over a capsule pair, config, telemetry and threshold policy; emit a deterministic verdict artifact.")
	}
	if len(arguments) == 0 {
		printRefuseUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "eval":
		return runRefuseEval(arguments[1:])
	default:
		printRefuseUsage()
		return exitInvalidInput
	}
}

func runRefuseEval(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Run one refusal evaluation. Exit 0 when the gate passes, 3 when it halts.")
	}
	flagSet := flag.NewFlagSet("refuse-eval", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var capsulePath string
	var afterPath string
	var configPath string
	var telemetryPath string
	var policyPath string
	var digestMode string
	var verdictPath string
	var historyPath string
	var privateKeyPath string
	var privateKeyEnv string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&capsulePath, "capsule", "", "path to capsule record json (before view)")
	flagSet.StringVar(&afterPath, "after", "", "path to after-view capsule record json (default: the --capsule file)")
	flagSet.StringVar(&configPath, "config", "", "path to emulator config record json")
	flagSet.StringVar(&telemetryPath, "telemetry", "", "path to telemetry record json")
	flagSet.StringVar(&policyPath, "policy", "", "path to threshold policy yaml (default: built-in posture)")
	flagSet.StringVar(&digestMode, "digest", refusal.DigestModeFold, "capsule digest mode: fold|jcs")
	flagSet.StringVar(&verdictPath, "verdict-out", "", "path to emitted verdict record JSON")
	flagSet.StringVar(&historyPath, "history", "", "path to verdict history JSONL (appended)")
	flagSet.StringVar(&privateKeyPath, "private-key", "", "path to base64 private signing key")
	flagSet.StringVar(&privateKeyEnv, "private-key-env", "", "env var containing base64 private signing key")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printRefuseEvalUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: "unexpected positional arguments"}, exitInvalidInput)
	}
	if capsulePath == "" || configPath == "" || telemetryPath == "" {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: "--capsule, --config and --telemetry are required"}, exitInvalidInput)
	}

	digest, err := resolveDigestMode(digestMode)
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitInvalidInput)
	}

	before, err := refusal.ReadCapsuleFile(capsulePath)
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
	}
	after := before
	if strings.TrimSpace(afterPath) != "" {
		after, err = refusal.ReadCapsuleFile(afterPath)
		if err != nil {
			return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
		}
	}
	cfg, err := refusal.ReadConfigFile(configPath)
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
	}
	tel, err := refusal.ReadTelemetryFile(telemetryPath)
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
	}

	policy := refusal.DefaultPolicy()
	if strings.TrimSpace(policyPath) != "" {
		policy, err = refusal.LoadPolicyFile(policyPath)
		if err != nil {
			return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
		}
	}
	policyDigest, err := refusal.PolicyDigest(policy)
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitInternalFailure)
	}

	var signingKey ed25519.PrivateKey
	warnings := []string{}
	if privateKeyPath != "" || privateKeyEnv != "" {
		keyPair, keyWarnings, keyErr := sign.LoadSigningKey(sign.KeyConfig{
			Mode:           sign.ModeProd,
			PrivateKeyPath: privateKeyPath,
			PrivateKeyEnv:  privateKeyEnv,
		})
		if keyErr != nil {
			return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: keyErr.Error()}, exitInvalidInput)
		}
		signingKey = keyPair.Private
		warnings = append(warnings, keyWarnings...)
	}

	verdict := refusal.EvaluateWithOptions(before, after, cfg, tel, policy, refusal.EvalOptions{Digest: digest})
	beforeDigest := digest(before)
	afterDigest := digest(after)

	emitted, err := refusal.EmitVerdictRecord(verdict, refusal.EmitVerdictOptions{
		ProducerVersion:   version,
		CreatedAt:         time.Now().UTC(),
		DigestMode:        digestMode,
		BeforeDigest:      beforeDigest,
		AfterDigest:       afterDigest,
		PolicyDigest:      policyDigest,
		SigningPrivateKey: signingKey,
		VerdictPath:       verdictPath,
		HistoryPath:       historyPath,
	})
	if err != nil {
		return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{Error: err.Error()}, exitInternalFailure)
	}

	exitCode := exitOK
	if refusal.IsHalted(verdict.NextPhase) {
		exitCode = exitHalted
	}
	return writeRefuseEvalOutput(jsonOutput, refuseEvalOutput{
		OK:           true,
		Verdict:      verdict.OK,
		NextPhase:    verdict.NextPhase.String(),
		Halted:       refusal.IsHalted(verdict.NextPhase),
		Findings:     emitted.Record.Findings,
		DigestMode:   emitted.Record.DigestMode,
		BeforeDigest: hex.EncodeToString(beforeDigest[:]),
		AfterDigest:  hex.EncodeToString(afterDigest[:]),
		PolicyDigest: policyDigest,
		VerdictID:    emitted.Record.VerdictID,
		VerdictPath:  emitted.VerdictPath,
		HistoryPath:  emitted.HistoryPath,
		Warnings:     warnings,
	}, exitCode)
}

func resolveDigestMode(mode string) (refusal.DigestFunc, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", refusal.DigestModeFold:
		return refusal.FoldCapsuleDigest, nil
	case refusal.DigestModeJCS:
		return refusal.CanonicalCapsuleDigest, nil
	default:
		return nil, fmt.Errorf("unsupported --digest value %q (expected fold or jcs)", mode)
	}
}

func writeRefuseEvalOutput(jsonOutput bool, output refuseEvalOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}

	if output.OK {
		fmt.Printf("refuse eval: ok=%t phase=%s\n", output.Verdict, output.NextPhase)
		for _, finding := range output.Findings {
			fmt.Printf("finding: %s %s\n", finding.Class, finding.Detail)
		}
		if output.VerdictPath != "" {
			fmt.Printf("verdict: %s\n", output.VerdictPath)
		}
		if output.HistoryPath != "" {
			fmt.Printf("history: %s\n", output.HistoryPath)
		}
		for _, warning := range output.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}
		return exitCode
	}
	fmt.Printf("refuse eval error: %s\n", output.Error)
	return exitCode
}

func printRefuseUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cie refuse eval --capsule <capsule.json> --config <config.json> --telemetry <telemetry.json> [--after <capsule.json>] [--policy <policy.yaml>] [--digest fold|jcs] [--verdict-out verdict.json] [--history history.jsonl] [--private-key <path>|--private-key-env <VAR>] [--json] [--explain]")
}

func printRefuseEvalUsage() {
	printRefuseUsage()
}
