package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("admin-key-123", "hunter2")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}

	got, err := DecryptSecret(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if got != "admin-key-123" {
		t.Errorf("decrypted = %q, want %q", got, "admin-key-123")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("admin-key-123", "hunter2")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if _, err := DecryptSecret(blob, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestEncryptRejectsEmpty(t *testing.T) {
	if _, err := EncryptSecret("", "pw"); err == nil {
		t.Error("empty secret accepted")
	}
	if _, err := EncryptSecret("secret", ""); err == nil {
		t.Error("empty password accepted")
	}
}

func TestLoadAdminKey(t *testing.T) {
	t.Run("raw key wins", func(t *testing.T) {
		got, err := LoadAdminKey(KeyConfig{RawKey: "raw-key"})
		if err != nil {
			t.Fatalf("LoadAdminKey: %v", err)
		}
		if got != "raw-key" {
			t.Errorf("key = %q, want %q", got, "raw-key")
		}
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptSecret("file-key", "pw")
		if err != nil {
			t.Fatalf("EncryptSecret: %v", err)
		}
		path := filepath.Join(t.TempDir(), "admin.key.json")
		if err := os.WriteFile(path, blob, 0o600); err != nil {
			t.Fatalf("write key file: %v", err)
		}

		got, err := LoadAdminKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
		if err != nil {
			t.Fatalf("LoadAdminKey: %v", err)
		}
		if got != "file-key" {
			t.Errorf("key = %q, want %q", got, "file-key")
		}
	})

	t.Run("no source", func(t *testing.T) {
		if _, err := LoadAdminKey(KeyConfig{}); err == nil {
			t.Fatal("expected error with no key source")
		}
	})
}
