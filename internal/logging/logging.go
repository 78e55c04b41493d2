// internal/logging/logging.go

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects where log records go.
type Options struct {
	// File, if set, receives every record (appended).
	File string
	// Stderr mirrors records to standard error. Turn it off while the
	// terminal UI owns the screen.
	Stderr bool
	// Level is one of debug, info, warn, error.
	Level string
	// Callback, if set, is called with each record's level and message.
	Callback func(level, message string)
}

// ParseLevel maps a level name onto a slog.Level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process logger. The returned close function releases the
// log file.
func New(opts Options) (*slog.Logger, func() error, error) {
	var writers []io.Writer
	closeFn := func() error { return nil }

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
		closeFn = file.Close
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	var handler slog.Handler = slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: true,
	})
	if opts.Callback != nil {
		handler = &callbackHandler{Handler: handler, fn: opts.Callback}
	}

	return slog.New(handler).With("app", "warpframe"), closeFn, nil
}

// callbackHandler forwards each record to fn after the wrapped handler.
type callbackHandler struct {
	slog.Handler
	fn    func(level, message string)
	attrs []slog.Attr
}

func (h *callbackHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.Handler.Handle(ctx, r)

	var sb strings.Builder
	sb.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Key == "app" {
			return true
		}
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	h.fn(r.Level.String(), sb.String())
	return err
}

func (h *callbackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &callbackHandler{Handler: h.Handler.WithAttrs(attrs), fn: h.fn, attrs: merged}
}

func (h *callbackHandler) WithGroup(name string) slog.Handler {
	return &callbackHandler{Handler: h.Handler.WithGroup(name), fn: h.fn, attrs: h.attrs}
}
