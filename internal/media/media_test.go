package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromPathImage(t *testing.T) {
	path := writeFile(t, "photo.png", []byte{0x89, 'P', 'N', 'G'})

	att, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if att.Type != "image" {
		t.Errorf("Type = %q, want %q", att.Type, "image")
	}
	if !strings.HasPrefix(att.Content, "data:image/png;base64,") {
		t.Errorf("Content = %q, want data:image/png;base64 prefix", att.Content)
	}
}

func TestFromPathAudio(t *testing.T) {
	path := writeFile(t, "voice.mp3", []byte("ID3"))

	att, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if att.Type != "audio" {
		t.Errorf("Type = %q, want %q", att.Type, "audio")
	}
	if !strings.HasPrefix(att.Content, "data:audio/") {
		t.Errorf("Content = %q, want data:audio/ prefix", att.Content)
	}
}

func TestFromPathGIF(t *testing.T) {
	path := writeFile(t, "anim.gif", []byte("GIF89a"))

	att, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if att.Type != "gif" {
		t.Errorf("Type = %q, want %q", att.Type, "gif")
	}
	if !strings.HasPrefix(att.Content, "data:image/gif;base64,") {
		t.Errorf("Content = %q, want data:image/gif;base64 prefix", att.Content)
	}
}

func TestFromPathRemoteGIF(t *testing.T) {
	url := "https://media.example.com/funny.gif"

	att, err := FromPath(url)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if att.Type != "gif" {
		t.Errorf("Type = %q, want %q", att.Type, "gif")
	}
	if att.Content != url {
		t.Errorf("Content = %q, want passthrough %q", att.Content, url)
	}
}

func TestFromPathUnsupported(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("hello"))

	_, err := FromPath(path)
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("FromPath() error = %v, want ErrUnsupportedFile", err)
	}
}

func TestFromPathMissing(t *testing.T) {
	_, err := FromPath(filepath.Join(t.TempDir(), "missing.png"))
	if err == nil {
		t.Error("FromPath() expected error for missing file")
	}
}
