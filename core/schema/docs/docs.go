// Package docs embeds the JSON Schema documents for the refusal wire records.
package docs

import (
	_ "embed"
	"fmt"
)

//go:embed capsule.schema.json
var CapsuleSchema []byte

//go:embed telemetry.schema.json
var TelemetrySchema []byte

//go:embed config.schema.json
var ConfigSchema []byte

//go:embed verdict.schema.json
var VerdictSchema []byte

// ForKind maps a record kind name to its embedded schema document.
func ForKind(kind string) ([]byte, error) {
	switch kind {
	case "capsule":
		return CapsuleSchema, nil
	case "telemetry":
		return TelemetrySchema, nil
	case "config":
		return ConfigSchema, nil
	case "verdict":
		return VerdictSchema, nil
	default:
		return nil, fmt.Errorf("unknown record kind: %q", kind)
	}
}
