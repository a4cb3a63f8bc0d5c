package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/batavialab/cie/core/refusal"
)

type policyOutput struct {
	OK           bool    `json:"ok"`
	PolicyDigest string  `json:"policy_digest,omitempty"`
	Acetaldehyde float64 `json:"acetaldehyde_ppm_max,omitempty"`
	Ethanol      float64 `json:"ethanol_ppm_max,omitempty"`
	Drift        float64 `json:"instrument_drift_mm_max,omitempty"`
	Floor        float64 `json:"kaiser_floor_min,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func runPolicy(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Validate a threshold policy document or print its deterministic digest.")
	}
	if len(arguments) == 0 {
		printPolicyUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "validate":
		return runPolicyAction(arguments[1:], false)
	case "digest":
		return runPolicyAction(arguments[1:], true)
	default:
		printPolicyUsage()
		return exitInvalidInput
	}
}

func runPolicyAction(arguments []string, digestOnly bool) int {
	flagSet := flag.NewFlagSet("policy", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var policyPath string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&policyPath, "policy", "", "path to threshold policy yaml")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writePolicyOutput(jsonOutput, policyOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printPolicyUsage()
		return exitOK
	}
	if policyPath == "" {
		return writePolicyOutput(jsonOutput, policyOutput{Error: "--policy is required"}, exitInvalidInput)
	}

	policy, err := refusal.LoadPolicyFile(policyPath)
	if err != nil {
		return writePolicyOutput(jsonOutput, policyOutput{Error: err.Error()}, exitInvalidInput)
	}
	digest, err := refusal.PolicyDigest(policy)
	if err != nil {
		return writePolicyOutput(jsonOutput, policyOutput{Error: err.Error()}, exitInternalFailure)
	}

	output := policyOutput{OK: true, PolicyDigest: digest}
	if !digestOnly {
		output.Acetaldehyde = policy.AcetaldehydePPMMax
		output.Ethanol = policy.EthanolPPMMax
		output.Drift = policy.InstrumentDriftMMMax
		output.Floor = policy.KaiserFloorMin
	}
	return writePolicyOutput(jsonOutput, output, exitOK)
}

func writePolicyOutput(jsonOutput bool, output policyOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.OK {
		fmt.Printf("policy digest: %s\n", output.PolicyDigest)
		return exitCode
	}
	fmt.Printf("policy error: %s\n", output.Error)
	return exitCode
}

func printPolicyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cie policy validate --policy <policy.yaml> [--json] [--explain]")
	fmt.Println("  cie policy digest --policy <policy.yaml> [--json] [--explain]")
}
