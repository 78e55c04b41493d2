// Package source runs the background decode loop that feeds the frame slot.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlverezYari/warpframe/internal/frameslot"
	"github.com/AlverezYari/warpframe/internal/settings"
	"github.com/AlverezYari/warpframe/pkg/video"
)

// State is the loop's current phase.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateDecoding
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateDecoding:
		return "decoding"
	case StateBackoff:
		return "error_backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Notifier is told whenever a source has been opened.
type Notifier interface {
	SourceOpened(name string, width, height int)
}

// Config tunes the loop's pacing.
type Config struct {
	// FPS is the target decode rate.
	FPS float64
	// RetryDelay is the fixed wait after a failed open.
	RetryDelay time.Duration
}

// DefaultConfig returns 30 frames/second and a one second retry delay.
func DefaultConfig() Config {
	return Config{
		FPS:        30,
		RetryDelay: 1 * time.Second,
	}
}

// Interval returns the time between two decoded frames.
func (c Config) Interval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) / c.FPS)
}

// Stats is a snapshot of the loop's progress.
type Stats struct {
	State        State
	Source       string
	Width        int
	Height       int
	FramesRead   uint64
	OpenFailures uint64
	Reopens      uint64
	Switches     uint64
}

// Loop owns the decode handle for the configured video source. It reopens the
// source at end of stream, retries failed opens with a fixed delay and
// switches sources when the settings store says so.
type Loop struct {
	opener   video.Opener
	store    *settings.Store
	slot     *frameslot.Slot
	cfg      Config
	logger   *slog.Logger
	notifier Notifier

	state        atomic.Int32
	framesRead   atomic.Uint64
	openFailures atomic.Uint64
	reopens      atomic.Uint64
	switches     atomic.Uint64

	mu     sync.Mutex // protects source, width, height
	source string
	width  int
	height int

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds a Loop. notifier may be nil.
func New(opener video.Opener, store *settings.Store, slot *frameslot.Slot, cfg Config, logger *slog.Logger, notifier Notifier) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	return &Loop{
		opener:   opener,
		store:    store,
		slot:     slot,
		cfg:      cfg,
		logger:   logger.With("component", "source"),
		notifier: notifier,
	}
}

// Start launches the loop goroutine. It returns immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.startedMu.Lock()
	defer l.startedMu.Unlock()

	if l.started {
		return fmt.Errorf("source loop already started")
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop cancels the loop and blocks until the decode handle is released.
// It is safe to call more than once.
func (l *Loop) Stop() {
	l.startedMu.Lock()
	cancel := l.cancel
	l.startedMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	source, w, h := l.source, l.width, l.height
	l.mu.Unlock()

	return Stats{
		State:        State(l.state.Load()),
		Source:       source,
		Width:        w,
		Height:       h,
		FramesRead:   l.framesRead.Load(),
		OpenFailures: l.openFailures.Load(),
		Reopens:      l.reopens.Load(),
		Switches:     l.switches.Load(),
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) setSource(name string, w, h int) {
	l.mu.Lock()
	l.source, l.width, l.height = name, w, h
	l.mu.Unlock()
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer l.setState(StateStopped)

	name := l.store.Read().VideoSource
	l.drainSignal()

	for ctx.Err() == nil {
		l.setState(StateOpening)
		capture, err := l.opener.Open(name)
		if err != nil {
			l.openFailures.Add(1)
			l.logger.Error("failed to open video source", "source", name, "error", err)
			if !l.backoff(ctx) {
				return
			}
			name = l.store.Read().VideoSource
			continue
		}

		next, err := l.decode(ctx, name, capture)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			l.openFailures.Add(1)
			l.logger.Error("video source produced no frames", "source", name, "error", err)
			if !l.backoff(ctx) {
				return
			}
			name = l.store.Read().VideoSource
		default:
			name = next
		}
	}
}

// decode reads frames from an open capture until end of stream, a source
// switch or cancellation. It always closes the capture. The returned name is
// the source to open next.
func (l *Loop) decode(ctx context.Context, name string, capture video.Capture) (string, error) {
	defer func() {
		if err := capture.Close(); err != nil {
			l.logger.Warn("error closing video source", "source", name, "error", err)
		}
	}()

	w, h := capture.Size()
	l.setSource(name, w, h)
	l.setState(StateDecoding)
	l.logger.Info("video source opened", "source", name, "width", w, "height", h)
	if l.notifier != nil {
		l.notifier.SourceOpened(name, w, h)
	}

	ticker := time.NewTicker(l.cfg.Interval())
	defer ticker.Stop()

	read := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if next, ok := l.pendingSwitch(name); ok {
			l.switches.Add(1)
			l.slot.Clear()
			l.logger.Info("switching video source", "from", name, "to", next)
			return next, nil
		}

		img, err := capture.Read()
		if err != nil {
			if read == 0 {
				if errors.Is(err, io.EOF) {
					return "", fmt.Errorf("%w: empty stream", video.ErrOpen)
				}
				return "", err
			}
			if !errors.Is(err, io.EOF) {
				l.logger.Warn("decode failed, reopening", "source", name, "error", err)
			} else {
				l.logger.Debug("end of stream, reopening", "source", name, "frames", read)
			}
			l.reopens.Add(1)
			return name, nil
		}
		read++
		l.framesRead.Add(1)

		l.slot.Publish(&frameslot.Frame{
			Source:    name,
			Width:     img.Width,
			Height:    img.Height,
			Data:      img.Data,
			Timestamp: time.Now(),
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// pendingSwitch consumes the source-changed signal and compares the open
// source against the store. The comparison alone catches a switch whose
// signal was already drained.
func (l *Loop) pendingSwitch(open string) (string, bool) {
	l.drainSignal()
	current := l.store.Read().VideoSource
	return current, current != open
}

func (l *Loop) drainSignal() {
	select {
	case <-l.store.SourceChanged():
	default:
	}
}

func (l *Loop) backoff(ctx context.Context) bool {
	l.setState(StateBackoff)
	timer := time.NewTimer(l.cfg.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
