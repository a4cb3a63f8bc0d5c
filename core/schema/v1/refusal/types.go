package refusal

import "time"

// Wire records for the stage-5 refusal surface. Fixed-size binary fields
// travel as lowercase hex: 64 chars for 32-byte anchors, 40 chars for the
// 20-byte build id.

type CapsuleRecord struct {
	SchemaID                  string `json:"schema_id"`
	SchemaVersion             string `json:"schema_version"`
	SceneID                   string `json:"scene_id"`
	WorldID                   string `json:"world_id"`
	CorridorID                string `json:"corridor_id"`
	FinalityTag               string `json:"finality_tag"`
	GenesisHashSHA256         string `json:"genesis_hash_sha256"`
	VaultedBlobSHA256         string `json:"vaulted_blob_sha256"`
	MerkleRoot                string `json:"merkle_root"`
	PrevRoot                  string `json:"prev_root"`
	Stage3ImpossibleWorldline bool   `json:"stage3_impossible_worldline"`
}

type ConfigRecord struct {
	SchemaID         string  `json:"schema_id"`
	SchemaVersion    string  `json:"schema_version"`
	BuildID          string  `json:"build_id"`
	ConfigHashSHA256 string  `json:"config_hash_sha256"`
	MaxFrameDeltaUS  uint32  `json:"max_frame_delta_us"`
	KaiserFloor      float64 `json:"kaiser_floor"`
}

type TelemetryRecord struct {
	SchemaID                string  `json:"schema_id"`
	SchemaVersion           string  `json:"schema_version"`
	AcetaldehydePPM         float64 `json:"acetaldehyde_ppm"`
	EthanolPPM              float64 `json:"ethanol_ppm"`
	InstrumentDriftMM       float64 `json:"instrument_drift_mm"`
	BiologicalIntrusionFlag bool    `json:"biological_intrusion_flag"`
	WorldlineImpossibleFlag bool    `json:"worldline_impossible_flag"`
}

type FindingRecord struct {
	Class  string `json:"class"`
	Detail string `json:"detail"`
}

type Signature struct {
	Alg          string `json:"alg"`
	KeyID        string `json:"key_id"`
	Sig          string `json:"sig"`
	SignedDigest string `json:"signed_digest,omitempty"`
}

type VerdictRecord struct {
	SchemaID        string          `json:"schema_id"`
	SchemaVersion   string          `json:"schema_version"`
	CreatedAt       time.Time       `json:"created_at"`
	ProducerVersion string          `json:"producer_version"`
	VerdictID       string          `json:"verdict_id"`
	OK              bool            `json:"ok"`
	NextPhase       string          `json:"next_phase"`
	Findings        []FindingRecord `json:"findings"`
	DigestMode      string          `json:"digest_mode"`
	BeforeDigest    string          `json:"before_digest"`
	AfterDigest     string          `json:"after_digest"`
	PolicyDigest    string          `json:"policy_digest"`
	Signature       *Signature      `json:"signature,omitempty"`
}
