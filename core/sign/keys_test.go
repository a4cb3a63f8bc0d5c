package sign

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSigningKeyDevMode(t *testing.T) {
	kp, warnings, err := LoadSigningKey(KeyConfig{Mode: ModeDev})
	if err != nil {
		t.Fatalf("dev mode: %v", err)
	}
	if len(kp.Private) == 0 || len(kp.Public) == 0 {
		t.Fatalf("dev mode must generate a pair")
	}
	if len(warnings) != 1 || warnings[0] != DevKeyWarning {
		t.Fatalf("dev mode must warn: %v", warnings)
	}
}

func TestLoadSigningKeyDevModeRejectsKeySources(t *testing.T) {
	_, _, err := LoadSigningKey(KeyConfig{Mode: ModeDev, PrivateKeyPath: "some/path"})
	if err == nil {
		t.Fatalf("dev mode with explicit key source must error")
	}
}

func TestLoadSigningKeyProdModeFromPath(t *testing.T) {
	kp := mustKeyPair(t)
	path := filepath.Join(t.TempDir(), "key.priv")
	encoded := base64.StdEncoding.EncodeToString(kp.Private)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	loaded, warnings, err := LoadSigningKey(KeyConfig{Mode: ModeProd, PrivateKeyPath: path})
	if err != nil {
		t.Fatalf("prod mode: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("prod mode must not warn: %v", warnings)
	}
	if !loaded.Private.Equal(kp.Private) || !loaded.Public.Equal(kp.Public) {
		t.Fatalf("loaded pair mismatch")
	}
}

func TestLoadSigningKeyProdModeFromEnv(t *testing.T) {
	kp := mustKeyPair(t)
	t.Setenv("CIE_TEST_SIGNING_KEY", base64.StdEncoding.EncodeToString(kp.Private))

	loaded, _, err := LoadSigningKey(KeyConfig{Mode: ModeProd, PrivateKeyEnv: "CIE_TEST_SIGNING_KEY"})
	if err != nil {
		t.Fatalf("prod mode from env: %v", err)
	}
	if !loaded.Private.Equal(kp.Private) {
		t.Fatalf("loaded key mismatch")
	}
}

func TestLoadSigningKeyProdModeRequiresSource(t *testing.T) {
	if _, _, err := LoadSigningKey(KeyConfig{Mode: ModeProd}); err == nil {
		t.Fatalf("prod mode without a key source must error")
	}
}

func TestLoadSigningKeyDefaultsToProd(t *testing.T) {
	if _, _, err := LoadSigningKey(KeyConfig{}); err == nil {
		t.Fatalf("empty mode defaults to prod and must require a key source")
	}
}

func TestLoadSigningKeyRejectsMismatchedPublicKey(t *testing.T) {
	kp := mustKeyPair(t)
	other := mustKeyPair(t)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key.priv")
	pubPath := filepath.Join(dir, "other.pub")
	if err := os.WriteFile(privPath, []byte(base64.StdEncoding.EncodeToString(kp.Private)), 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, []byte(base64.StdEncoding.EncodeToString(other.Public)), 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	_, _, err := LoadSigningKey(KeyConfig{Mode: ModeProd, PrivateKeyPath: privPath, PublicKeyPath: pubPath})
	if err == nil {
		t.Fatalf("mismatched public key must be rejected")
	}
}

func TestLoadVerifyKeyFromPrivateSource(t *testing.T) {
	kp := mustKeyPair(t)
	path := filepath.Join(t.TempDir(), "key.priv")
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(kp.Private)), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	pub, err := LoadVerifyKey(KeyConfig{PrivateKeyPath: path})
	if err != nil {
		t.Fatalf("load verify key: %v", err)
	}
	if !pub.Equal(kp.Public) {
		t.Fatalf("derived public key mismatch")
	}
}

func TestLoadVerifyKeyRejectsAmbiguousSources(t *testing.T) {
	if _, err := LoadVerifyKey(KeyConfig{PublicKeyPath: "a", PublicKeyEnv: "B"}); err == nil {
		t.Fatalf("ambiguous public key sources must error")
	}
	if _, err := LoadVerifyKey(KeyConfig{}); err == nil {
		t.Fatalf("no source must error")
	}
}
