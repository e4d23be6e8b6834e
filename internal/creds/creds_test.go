package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "creds.toml"))
}

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)

	in := &Credentials{Token: "tok-1", UserID: "u1", Username: "alice"}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, ok := s.Load()
	if !ok {
		t.Fatal("Load() ok = false, want true")
	}
	if out.Token != "tok-1" || out.UserID != "u1" || out.Username != "alice" {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}
	if s.Token() != "tok-1" {
		t.Errorf("Token() = %q, want tok-1", s.Token())
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := testStore(t)
	if _, ok := s.Load(); ok {
		t.Error("Load() ok = true for missing file, want false")
	}
	if s.Token() != "" {
		t.Errorf("Token() = %q, want empty", s.Token())
	}
}

// Any missing entry forces the unauthenticated view, even if the rest of
// the file is present.
func TestIncompleteCredentials(t *testing.T) {
	tests := []Credentials{
		{UserID: "u1", Username: "alice"},
		{Token: "tok", Username: "alice"},
		{Token: "tok", UserID: "u1"},
	}
	for _, c := range tests {
		s := testStore(t)
		if err := s.Save(&c); err != nil {
			t.Fatal(err)
		}
		if _, ok := s.Load(); ok {
			t.Errorf("Load() ok = true for incomplete %+v, want false", c)
		}
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Credentials{Token: "t", UserID: "u", Username: "n"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok := s.Load(); ok {
		t.Error("Load() ok = true after Clear(), want false")
	}
	// Clearing again is not an error.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Credentials{Token: "t", UserID: "u", Username: "n"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
