package refusal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"

	coreerrors "github.com/batavialab/cie/core/errors"
	schemarefusal "github.com/batavialab/cie/core/schema/v1/refusal"
)

const (
	capsuleSchemaID   = "cie.refusal.capsule"
	configSchemaID    = "cie.refusal.config"
	telemetrySchemaID = "cie.refusal.telemetry"
	recordSchemaV1    = "1.0.0"
)

func CapsuleFromRecord(record schemarefusal.CapsuleRecord) (SceneCapsule, error) {
	if err := checkRecordSchema(record.SchemaID, record.SchemaVersion, capsuleSchemaID); err != nil {
		return SceneCapsule{}, err
	}
	capsule := SceneCapsule{
		SceneID:                   record.SceneID,
		WorldID:                   record.WorldID,
		CorridorID:                record.CorridorID,
		FinalityTag:               record.FinalityTag,
		Stage3ImpossibleWorldline: record.Stage3ImpossibleWorldline,
	}
	var err error
	if capsule.GenesisHashSHA256, err = decodeAnchor("genesis_hash_sha256", record.GenesisHashSHA256); err != nil {
		return SceneCapsule{}, err
	}
	if capsule.VaultedBlobSHA256, err = decodeAnchor("vaulted_blob_sha256", record.VaultedBlobSHA256); err != nil {
		return SceneCapsule{}, err
	}
	if capsule.MerkleRoot, err = decodeAnchor("merkle_root", record.MerkleRoot); err != nil {
		return SceneCapsule{}, err
	}
	if capsule.PrevRoot, err = decodeAnchor("prev_root", record.PrevRoot); err != nil {
		return SceneCapsule{}, err
	}
	return capsule, nil
}

func CapsuleToRecord(capsule SceneCapsule) schemarefusal.CapsuleRecord {
	return schemarefusal.CapsuleRecord{
		SchemaID:                  capsuleSchemaID,
		SchemaVersion:             recordSchemaV1,
		SceneID:                   capsule.SceneID,
		WorldID:                   capsule.WorldID,
		CorridorID:                capsule.CorridorID,
		FinalityTag:               capsule.FinalityTag,
		GenesisHashSHA256:         hex.EncodeToString(capsule.GenesisHashSHA256[:]),
		VaultedBlobSHA256:         hex.EncodeToString(capsule.VaultedBlobSHA256[:]),
		MerkleRoot:                hex.EncodeToString(capsule.MerkleRoot[:]),
		PrevRoot:                  hex.EncodeToString(capsule.PrevRoot[:]),
		Stage3ImpossibleWorldline: capsule.Stage3ImpossibleWorldline,
	}
}

func ConfigFromRecord(record schemarefusal.ConfigRecord) (EmulatorConfig, error) {
	if err := checkRecordSchema(record.SchemaID, record.SchemaVersion, configSchemaID); err != nil {
		return EmulatorConfig{}, err
	}
	if math.IsNaN(record.KaiserFloor) || math.IsInf(record.KaiserFloor, 0) {
		return EmulatorConfig{}, fmt.Errorf("kaiser_floor must be finite")
	}
	cfg := EmulatorConfig{
		MaxFrameDeltaUS: record.MaxFrameDeltaUS,
		KaiserFloor:     record.KaiserFloor,
	}
	buildID, err := hex.DecodeString(record.BuildID)
	if err != nil {
		return EmulatorConfig{}, fmt.Errorf("decode build_id: %w", err)
	}
	if len(buildID) != len(cfg.BuildID) {
		return EmulatorConfig{}, fmt.Errorf("build_id must be %d bytes, got %d", len(cfg.BuildID), len(buildID))
	}
	copy(cfg.BuildID[:], buildID)
	if cfg.ConfigHashSHA256, err = decodeAnchor("config_hash_sha256", record.ConfigHashSHA256); err != nil {
		return EmulatorConfig{}, err
	}
	return cfg, nil
}

func ConfigToRecord(cfg EmulatorConfig) schemarefusal.ConfigRecord {
	return schemarefusal.ConfigRecord{
		SchemaID:         configSchemaID,
		SchemaVersion:    recordSchemaV1,
		BuildID:          hex.EncodeToString(cfg.BuildID[:]),
		ConfigHashSHA256: hex.EncodeToString(cfg.ConfigHashSHA256[:]),
		MaxFrameDeltaUS:  cfg.MaxFrameDeltaUS,
		KaiserFloor:      cfg.KaiserFloor,
	}
}

func TelemetryFromRecord(record schemarefusal.TelemetryRecord) (ContaminationTelemetry, error) {
	if err := checkRecordSchema(record.SchemaID, record.SchemaVersion, telemetrySchemaID); err != nil {
		return ContaminationTelemetry{}, err
	}
	if err := checkMeasurement("acetaldehyde_ppm", record.AcetaldehydePPM); err != nil {
		return ContaminationTelemetry{}, err
	}
	if err := checkMeasurement("ethanol_ppm", record.EthanolPPM); err != nil {
		return ContaminationTelemetry{}, err
	}
	if err := checkMeasurement("instrument_drift_mm", record.InstrumentDriftMM); err != nil {
		return ContaminationTelemetry{}, err
	}
	return ContaminationTelemetry{
		AcetaldehydePPM:     record.AcetaldehydePPM,
		EthanolPPM:          record.EthanolPPM,
		InstrumentDriftMM:   record.InstrumentDriftMM,
		BiologicalIntrusion: record.BiologicalIntrusionFlag,
		WorldlineImpossible: record.WorldlineImpossibleFlag,
	}, nil
}

func TelemetryToRecord(tel ContaminationTelemetry) schemarefusal.TelemetryRecord {
	return schemarefusal.TelemetryRecord{
		SchemaID:                telemetrySchemaID,
		SchemaVersion:           recordSchemaV1,
		AcetaldehydePPM:         tel.AcetaldehydePPM,
		EthanolPPM:              tel.EthanolPPM,
		InstrumentDriftMM:       tel.InstrumentDriftMM,
		BiologicalIntrusionFlag: tel.BiologicalIntrusion,
		WorldlineImpossibleFlag: tel.WorldlineImpossible,
	}
}

func ReadCapsuleFile(path string) (SceneCapsule, error) {
	var record schemarefusal.CapsuleRecord
	if err := readRecordFile(path, "capsule", &record); err != nil {
		return SceneCapsule{}, err
	}
	capsule, err := CapsuleFromRecord(record)
	if err != nil {
		return SceneCapsule{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "capsule_invalid", "check capsule record fields", false)
	}
	return capsule, nil
}

func ReadConfigFile(path string) (EmulatorConfig, error) {
	var record schemarefusal.ConfigRecord
	if err := readRecordFile(path, "config", &record); err != nil {
		return EmulatorConfig{}, err
	}
	cfg, err := ConfigFromRecord(record)
	if err != nil {
		return EmulatorConfig{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "config_invalid", "check config record fields", false)
	}
	return cfg, nil
}

func ReadTelemetryFile(path string) (ContaminationTelemetry, error) {
	var record schemarefusal.TelemetryRecord
	if err := readRecordFile(path, "telemetry", &record); err != nil {
		return ContaminationTelemetry{}, err
	}
	tel, err := TelemetryFromRecord(record)
	if err != nil {
		return ContaminationTelemetry{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "telemetry_invalid", "check telemetry record fields", false)
	}
	return tel, nil
}

func readRecordFile(path, kind string, out any) error {
	// #nosec G304 -- record path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return coreerrors.Wrap(
			fmt.Errorf("read %s: %w", kind, err),
			coreerrors.CategoryIOFailure, kind+"_read_failed", "check the record path", false,
		)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return coreerrors.Wrap(
			fmt.Errorf("parse %s json: %w", kind, err),
			coreerrors.CategoryInvalidInput, kind+"_parse_failed", "check the record JSON", false,
		)
	}
	return nil
}

func checkRecordSchema(schemaID, schemaVersion, wantID string) error {
	if schemaID != "" && schemaID != wantID {
		return fmt.Errorf("unsupported schema_id: %s", schemaID)
	}
	if schemaVersion != "" && schemaVersion != recordSchemaV1 {
		return fmt.Errorf("unsupported schema_version: %s", schemaVersion)
	}
	return nil
}

func checkMeasurement(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("telemetry %s must be finite", name)
	}
	if value < 0 {
		return fmt.Errorf("telemetry %s must be >= 0", name)
	}
	return nil
}

func decodeAnchor(name, value string) ([32]byte, error) {
	var anchor [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil {
		return anchor, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(raw) != len(anchor) {
		return anchor, fmt.Errorf("%s must be %d bytes, got %d", name, len(anchor), len(raw))
	}
	copy(anchor[:], raw)
	return anchor, nil
}
