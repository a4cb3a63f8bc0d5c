package refusal

import (
	"encoding/json"

	"github.com/batavialab/cie/core/jcs"
)

// CapsuleDigest is the fixed-size mutation-detection token for a capsule.
// Token equality is the sole signal the evaluator uses; it never compares
// capsules field by field.
type CapsuleDigest [32]byte

// DigestFunc is the narrow hook behind which the mutation detector lives, so
// deployments can swap the fold for canonical-serialize-then-hash without
// touching evaluator logic.
type DigestFunc func(SceneCapsule) CapsuleDigest

// FoldCapsuleDigest is the reference placeholder digest: a stable fold over
// identifier lengths, the leading bytes of the content and merkle anchors,
// and the stage-3 flag. Cheap mutation detector, not a content hash.
func FoldCapsuleDigest(capsule SceneCapsule) CapsuleDigest {
	var out CapsuleDigest
	out[0] = byte(len(capsule.SceneID) & 0xFF)
	out[1] = byte(len(capsule.WorldID) & 0xFF)
	out[2] = byte(len(capsule.CorridorID) & 0xFF)
	out[3] = byte(len(capsule.FinalityTag) & 0xFF)
	copy(out[4:12], capsule.GenesisHashSHA256[0:8])
	copy(out[12:20], capsule.VaultedBlobSHA256[0:8])
	copy(out[20:28], capsule.MerkleRoot[0:8])
	if capsule.Stage3ImpossibleWorldline {
		out[28] = 1
	}
	return out
}

// CanonicalCapsuleDigest is the production-grade digest: RFC 8785
// canonicalization of the capsule wire record followed by sha256. It covers
// every capsule field, unlike the fold.
func CanonicalCapsuleDigest(capsule SceneCapsule) CapsuleDigest {
	raw, err := json.Marshal(CapsuleToRecord(capsule))
	if err != nil {
		// Marshaling a plain record cannot fail; keep the digest total.
		return FoldCapsuleDigest(capsule)
	}
	sum, err := jcs.DigestJCSRaw(raw)
	if err != nil {
		return FoldCapsuleDigest(capsule)
	}
	return CapsuleDigest(sum)
}
