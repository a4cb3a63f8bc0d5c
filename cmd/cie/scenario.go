package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/batavialab/cie/core/scenario"
)

type scenarioOutput struct {
	OK         bool     `json:"ok"`
	Name       string   `json:"name,omitempty"`
	Passed     bool     `json:"passed"`
	Summary    string   `json:"summary,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func runScenario(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Run a declarative refusal scenario and compare the verdict against its expectations.")
	}
	if len(arguments) == 0 {
		printScenarioUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "run":
		return runScenarioRun(arguments[1:])
	default:
		printScenarioUsage()
		return exitInvalidInput
	}
}

func runScenarioRun(arguments []string) int {
	flagSet := flag.NewFlagSet("scenario-run", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var scenarioPath string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&scenarioPath, "scenario", "", "path to scenario yaml")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeScenarioOutput(jsonOutput, scenarioOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printScenarioUsage()
		return exitOK
	}
	if scenarioPath == "" {
		return writeScenarioOutput(jsonOutput, scenarioOutput{Error: "--scenario is required"}, exitInvalidInput)
	}

	document, err := scenario.LoadDocumentFile(scenarioPath)
	if err != nil {
		return writeScenarioOutput(jsonOutput, scenarioOutput{Error: err.Error()}, exitInvalidInput)
	}
	runResult, err := scenario.Run(document)
	if err != nil {
		return writeScenarioOutput(jsonOutput, scenarioOutput{Error: err.Error()}, exitInvalidInput)
	}

	exitCode := exitOK
	if !runResult.Result.Passed {
		exitCode = exitScenarioFailed
	}
	return writeScenarioOutput(jsonOutput, scenarioOutput{
		OK:         true,
		Name:       runResult.Result.Name,
		Passed:     runResult.Result.Passed,
		Summary:    runResult.Summary,
		Mismatches: runResult.Result.Mismatches,
	}, exitCode)
}

func writeScenarioOutput(jsonOutput bool, output scenarioOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.OK {
		fmt.Println(output.Summary)
		for _, mismatch := range output.Mismatches {
			fmt.Printf("mismatch: %s\n", mismatch)
		}
		return exitCode
	}
	fmt.Printf("scenario error: %s\n", output.Error)
	return exitCode
}

func printScenarioUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cie scenario run --scenario <scenario.yaml> [--json] [--explain]")
}
