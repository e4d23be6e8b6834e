package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{ServerURL: "https://chat.example.net", DefaultSession: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ServerURL != "https://chat.example.net" {
		t.Errorf("ServerURL = %q, want %q", loaded.ServerURL, "https://chat.example.net")
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	var cfg *Config
	if got := cfg.ServerURLOrDefault(); got != DefaultServerURL {
		t.Errorf("ServerURLOrDefault() = %q, want %q", got, DefaultServerURL)
	}
	if got := cfg.TypingCooldown(); got != DefaultTypingCooldown {
		t.Errorf("TypingCooldown() = %v, want %v", got, DefaultTypingCooldown)
	}

	cfg = &Config{TypingCooldownSec: 5}
	if got := cfg.TypingCooldown(); got != 5*time.Second {
		t.Errorf("TypingCooldown() = %v, want 5s", got)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
