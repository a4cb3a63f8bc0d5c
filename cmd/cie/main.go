package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK              = 0
	exitInvalidInput    = 2
	exitHalted          = 3
	exitScenarioFailed  = 4
	exitInternalFailure = 9
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("cie", version)
		return exitOK
	}
	if arguments[1] == "--explain" {
		return writeExplain("cie is an offline-first CLI for the stage-5 contamination refusal gate: deterministic verdicts over scene capsules, telemetry and threshold policy.")
	}

	switch arguments[1] {
	case "refuse":
		return runRefuse(arguments[2:])
	case "policy":
		return runPolicy(arguments[2:])
	case "scenario":
		return runScenario(arguments[2:])
	case "schema":
		return runSchema(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("cie", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cie refuse eval --capsule <capsule.json> --config <config.json> --telemetry <telemetry.json> [flags]")
	fmt.Println("  cie policy validate|digest --policy <policy.yaml>")
	fmt.Println("  cie scenario run --scenario <scenario.yaml>")
	fmt.Println("  cie schema validate --kind capsule|telemetry|config|verdict --input <file>")
	fmt.Println("  cie version")
}
