package jcs

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// CanonicalizeJSON returns the RFC 8785 (JCS) canonical form of JSON input.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// DigestJCS canonicalizes JSON (RFC 8785) and returns a sha256 hex digest.
func DigestJCS(input []byte) (string, error) {
	sum, err := DigestJCSRaw(input)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// DigestJCSRaw is the raw 32-byte form, for callers that fold the digest
// into fixed-size tokens instead of printing it.
func DigestJCSRaw(input []byte) ([32]byte, error) {
	canonical, err := CanonicalizeJSON(input)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(canonical), nil
}
