package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File persists settings as a single indented JSON document.
type File struct {
	Path string
}

// NewFile returns a File persister for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Load reads the settings document. If the file does not exist, fallback is
// returned unchanged.
func (f *File) Load(fallback Settings) (Settings, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return fallback, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("error reading settings file: %w", err)
	}

	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Settings{}, fmt.Errorf("error decoding settings file %s: %w", f.Path, err)
	}
	return s, nil
}

// Save rewrites the whole document. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (f *File) Save(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling settings: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("error creating temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("error replacing settings file: %w", err)
	}
	return nil
}
