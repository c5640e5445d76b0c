package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	dec, err := DecryptKey(enc, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if dec != testKeyHex {
		t.Errorf("decrypted key = %q, want original", dec)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	enc, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	if _, err := DecryptKey(enc, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey = %q, want 0x prefix stripped", got)
	}
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	enc, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, enc, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey = %q, want decrypted key", got)
	}
}

func TestLoadKeyRejectsEmptyConfig(t *testing.T) {
	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error when no key source is configured")
	}
}

func TestLoadKeyRejectsBadHex(t *testing.T) {
	if _, err := LoadKey(KeyConfig{RawPrivateKey: "zz"}); err == nil {
		t.Fatal("expected error for non-hex key")
	}
}
