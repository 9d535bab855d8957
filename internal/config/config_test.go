package config

import (
	"path/filepath"
	"testing"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901") // 32 bytes
}

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := tempConfigPath(t)
	m, err := NewManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewManagerWithKey: %v", err)
	}
	return m, path
}

func TestNewManagerWithKey_InvalidKeyLength(t *testing.T) {
	_, err := NewManagerWithKey("test.json", []byte("short"))
	if err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	m, path := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := filepath.Glob(path); err != nil {
		t.Fatalf("Glob: %v", err)
	}
	cfg := m.Get()
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Limits.MaxRecords == 0 {
		t.Error("expected non-zero default MaxRecords")
	}
}

func TestEncryptDecryptSecret_RoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	enc := m.EncryptSecret("hunter2")
	if enc == "hunter2" {
		t.Fatal("expected value to be encrypted")
	}
	dec, err := m.DecryptSecret(enc)
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if dec != "hunter2" {
		t.Errorf("got %q, want %q", dec, "hunter2")
	}
}

func TestEncryptSecret_EmptyStringPassesThrough(t *testing.T) {
	m, _ := newTestManager(t)
	if got := m.EncryptSecret(""); got != "" {
		t.Errorf("expected empty string passthrough, got %q", got)
	}
}

func TestAdminPassword_SetAndCheck(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.SetAdminPassword("correct horse battery staple"); err != nil {
		t.Fatalf("SetAdminPassword: %v", err)
	}
	if !m.CheckAdminPassword("correct horse battery staple") {
		t.Error("expected matching password to check out")
	}
	if m.CheckAdminPassword("wrong password") {
		t.Error("expected non-matching password to fail")
	}
	if m.Get().Admin.PasswordSetAt == "" {
		t.Error("expected PasswordSetAt to be recorded")
	}
}

func TestGetCopy_MutationNotPersisted(t *testing.T) {
	m, path := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := m.Get()
	cfg.Limits.MaxGridCells = 12345
	m2, err := NewManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewManagerWithKey: %v", err)
	}
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m2.Get().Limits.MaxGridCells; got == 12345 {
		t.Error("mutating a Get() copy should not affect the manager's stored config")
	}
}
