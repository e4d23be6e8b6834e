package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize caps what gets inlined as a data URI. The wire carries the
// whole payload in one frame, so this has to stay modest.
const maxFileSize = 8 << 20

var (
	ErrUnsupportedFile = errors.New("unsupported media file")
	ErrTooLarge        = fmt.Errorf("media file exceeds %d bytes", maxFileSize)
)

// Attachment is an encoded media payload ready to send.
type Attachment struct {
	Content string // data URI, or a passed-through remote URL for gifs
	Type    string // image, audio, gif
}

// FromPath encodes a local file as a data URI the way the browser client
// does, deriving the message type from the extension. Remote http(s) URLs
// ending in .gif are passed through unencoded.
func FromPath(path string) (*Attachment, error) {
	if isRemoteGIF(path) {
		return &Attachment{Content: path, Type: "gif"}, nil
	}

	msgType, mimeType, err := classify(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, ErrTooLarge
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	uri := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(raw))
	return &Attachment{Content: uri, Type: msgType}, nil
}

func isRemoteGIF(path string) bool {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), ".gif")
}

func classify(path string) (msgType, mimeType string, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gif" {
		return "gif", "image/gif", nil
	}

	mimeType = mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = fallbackMime[ext]
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image", mimeType, nil
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio", mimeType, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
}

// fallbackMime covers common extensions that may be missing from the
// host's mime database.
var fallbackMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}
