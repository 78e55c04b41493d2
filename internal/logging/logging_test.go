package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewWritesFileAndCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warpframe.log")

	var mu sync.Mutex
	var got []string
	logger, closeFn, err := New(Options{
		File:  path,
		Level: "info",
		Callback: func(level, message string) {
			mu.Lock()
			got = append(got, level+" "+message)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.With("component", "source").Info("video source opened", "source", "a.mp4")
	logger.Debug("filtered out")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "video source opened") || strings.Contains(string(data), "filtered out") {
		t.Errorf("log file content = %q", data)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("callback got %v, want one record", got)
	}
	if got[0] != "INFO video source opened component=source source=a.mp4" {
		t.Errorf("callback got %q", got[0])
	}
}
