package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/batavialab/cie/core/schema/validate"
)

type schemaOutput struct {
	OK    bool   `json:"ok"`
	Kind  string `json:"kind,omitempty"`
	Input string `json:"input,omitempty"`
	Error string `json:"error,omitempty"`
}

func runSchema(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Validate refusal wire records against their embedded JSON Schemas.")
	}
	if len(arguments) == 0 {
		printSchemaUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "validate":
		return runSchemaValidate(arguments[1:])
	default:
		printSchemaUsage()
		return exitInvalidInput
	}
}

func runSchemaValidate(arguments []string) int {
	flagSet := flag.NewFlagSet("schema-validate", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var kind string
	var inputPath string
	var jsonl bool
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&kind, "kind", "", "record kind: capsule|telemetry|config|verdict")
	flagSet.StringVar(&inputPath, "input", "", "path to record JSON (or JSONL with --jsonl)")
	flagSet.BoolVar(&jsonl, "jsonl", false, "treat input as JSONL, one record per line")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeSchemaOutput(jsonOutput, schemaOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printSchemaUsage()
		return exitOK
	}
	if kind == "" || inputPath == "" {
		return writeSchemaOutput(jsonOutput, schemaOutput{Error: "both --kind and --input are required"}, exitInvalidInput)
	}

	if err := validate.ValidateKindFile(kind, inputPath, jsonl); err != nil {
		return writeSchemaOutput(jsonOutput, schemaOutput{Kind: kind, Input: inputPath, Error: err.Error()}, exitInvalidInput)
	}
	return writeSchemaOutput(jsonOutput, schemaOutput{OK: true, Kind: kind, Input: inputPath}, exitOK)
}

func writeSchemaOutput(jsonOutput bool, output schemaOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.OK {
		fmt.Printf("schema validate: kind=%s input=%s ok\n", output.Kind, output.Input)
		return exitCode
	}
	fmt.Printf("schema validate error: %s\n", output.Error)
	return exitCode
}

func printSchemaUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cie schema validate --kind capsule|telemetry|config|verdict --input <file> [--jsonl] [--json] [--explain]")
}
