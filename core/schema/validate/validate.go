package validate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonschema"

	"github.com/batavialab/cie/core/schema/docs"
)

// ValidateKindJSON validates one JSON record against the embedded schema for
// the given kind (capsule, telemetry, config, verdict).
func ValidateKindJSON(kind string, data []byte) error {
	schema, err := compileKind(kind)
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}

// ValidateKindJSONL validates every non-empty line of a JSONL stream.
func ValidateKindJSONL(kind string, data []byte) error {
	schema, err := compileKind(kind)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := validateJSON(schema, b); err != nil {
			return fmt.Errorf("jsonl line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return nil
}

func ValidateKindFile(kind, path string, jsonl bool) error {
	// #nosec G304 -- input path is explicit local user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if jsonl {
		return ValidateKindJSONL(kind, data)
	}
	return ValidateKindJSON(kind, data)
}

func compileKind(kind string) (*jsonschema.Schema, error) {
	document, err := docs.ForKind(kind)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(document)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
