// pkg/video/video.go
package video

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOpen is returned when a video source cannot be opened or has no usable size.
var ErrOpen = errors.New("video: cannot open source")

// Extensions lists the file extensions treated as video sources.
var Extensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v"}

// Image is one decoded raster: 8-bit BGR, row-major, 3 bytes per pixel.
type Image struct {
	Width  int
	Height int
	Data   []byte
}

// Capture is an open decode handle. It is owned by a single goroutine.
type Capture interface {
	// Size returns the native frame size read when the source was opened.
	Size() (width, height int)
	// Read decodes the next frame. It returns io.EOF at the end of the stream.
	Read() (Image, error)
	Close() error
}

// Opener opens named video sources.
type Opener interface {
	Open(name string) (Capture, error)
}

// ResolvePath maps a source name onto a file inside dir. Names must be bare
// file names; anything that would escape dir is rejected.
func ResolvePath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid source name %q", ErrOpen, name)
	}
	return filepath.Join(dir, name), nil
}

// List returns the video file names found in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading video directory: %w", err)
	}

	videos := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if IsVideo(entry.Name()) {
			videos = append(videos, entry.Name())
		}
	}
	return videos, nil
}

// IsVideo reports whether name carries one of the known video extensions.
func IsVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
