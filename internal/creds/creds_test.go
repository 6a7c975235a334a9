package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "credentials.toml")

	contents := `
[profiles.default]
api_key = "sm_testkey123"

[profiles.work]
api_key = "sm_workkey456"
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	key, err := Load(path, "default")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if key != "sm_testkey123" {
		t.Errorf("expected sm_testkey123, got %s", key)
	}

	key, err = Load(path, "work")
	if err != nil {
		t.Fatalf("Load failed for work profile: %v", err)
	}
	if key != "sm_workkey456" {
		t.Errorf("expected sm_workkey456, got %s", key)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), "default")
	if err == nil {
		t.Error("expected error for missing credentials file")
	}
}

func TestLoad_MissingProfile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "credentials.toml")

	contents := "[profiles.default]\napi_key = \"sm_key\"\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := Load(path, "staging"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoad_EmptyKey(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "credentials.toml")

	contents := "[profiles.default]\napi_key = \"  \"\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := Load(path, "default"); err == nil {
		t.Error("expected error for empty api_key")
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "sub", "credentials.toml")

	if err := Save(path, "default", "sm_newkey789"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify permissions
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat credentials file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected permissions 0600, got %o", perm)
	}

	key, err := Load(path, "default")
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if key != "sm_newkey789" {
		t.Errorf("expected sm_newkey789, got %s", key)
	}
}

func TestSave_PreservesOtherProfiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "credentials.toml")

	if err := Save(path, "default", "sm_first"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := Save(path, "work", "sm_second"); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	key, err := Load(path, "default")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if key != "sm_first" {
		t.Errorf("expected original profile to survive, got %s", key)
	}
}
