// Package stream runs one session per connected client. A session repeatedly
// renders the latest decoded frame with the current settings and writes it to
// the client's transport.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AlverezYari/warpframe/internal/frameslot"
	"github.com/AlverezYari/warpframe/internal/settings"
)

// Renderer turns a decoded frame into an encoded image.
type Renderer interface {
	Render(f *frameslot.Frame, s settings.Settings) ([]byte, error)
}

// Sink delivers encoded frames to one client.
type Sink interface {
	WriteFrame(data []byte) error
}

// Session describes one connected client.
type Session struct {
	ID        string
	Transport string
	Remote    string
	Started   time.Time

	sent    atomic.Uint64
	skipped atomic.Uint64
}

// SessionInfo is a copy of a session's counters.
type SessionInfo struct {
	ID        string
	Transport string
	Remote    string
	Started   time.Time
	Sent      uint64
	Skipped   uint64
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		Transport: s.Transport,
		Remote:    s.Remote,
		Started:   s.Started,
		Sent:      s.sent.Load(),
		Skipped:   s.skipped.Load(),
	}
}

// Registry tracks active sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of all active sessions.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	return out
}

// Config sets session pacing.
type Config struct {
	// Interval is the target time between two emitted frames.
	Interval time.Duration
	// Poll is how often a session checks for a first frame.
	Poll time.Duration
}

// DefaultConfig paces sessions at 30 frames/second and polls every 10ms.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second / 30,
		Poll:     10 * time.Millisecond,
	}
}

// Streamer runs sessions against a shared slot and settings store.
type Streamer struct {
	slot     *frameslot.Slot
	store    *settings.Store
	renderer Renderer
	cfg      Config
	registry *Registry
	logger   *slog.Logger
}

func NewStreamer(slot *frameslot.Slot, store *settings.Store, renderer Renderer, cfg Config, logger *slog.Logger) *Streamer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultConfig().Poll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		slot:     slot,
		store:    store,
		renderer: renderer,
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger.With("component", "stream"),
	}
}

// Registry returns the set of active sessions.
func (s *Streamer) Registry() *Registry {
	return s.registry
}

// Run streams frames to sink until ctx ends or a write fails. A cancelled
// context is the normal end of a session and returns nil.
func (s *Streamer) Run(ctx context.Context, transport, remote string, sink Sink) error {
	sess := &Session{
		ID:        uuid.New().String(),
		Transport: transport,
		Remote:    remote,
		Started:   time.Now(),
	}
	s.registry.add(sess)
	defer s.registry.remove(sess.ID)

	log := s.logger.With("session", sess.ID, "transport", transport, "remote", remote)
	log.Info("stream session started")
	defer func() {
		log.Info("stream session ended", "sent", sess.sent.Load(), "skipped", sess.skipped.Load())
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var lastErr string
	for {
		frame, err := s.slot.Wait(ctx, s.cfg.Poll)
		if err != nil {
			return nil
		}

		data, err := s.renderer.Render(frame, s.store.Read())
		if err != nil {
			sess.skipped.Add(1)
			// Logged once per distinct error; a bad quad fails every tick.
			if msg := err.Error(); msg != lastErr {
				lastErr = msg
				log.Warn("skipping frame", "seq", frame.Seq, "error", err)
			}
		} else {
			lastErr = ""
			if err := sink.WriteFrame(data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			sess.sent.Add(1)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
