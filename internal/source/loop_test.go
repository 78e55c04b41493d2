package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AlverezYari/warpframe/internal/frameslot"
	"github.com/AlverezYari/warpframe/internal/settings"
	"github.com/AlverezYari/warpframe/pkg/video"
)

type fakeVideo struct {
	width, height int
	frames        int // frames per pass; 0 means empty file
}

type fakeOpener struct {
	mu     sync.Mutex
	videos map[string]fakeVideo
	opened map[string]int
	open   int // handles currently open
}

func newFakeOpener(videos map[string]fakeVideo) *fakeOpener {
	return &fakeOpener{videos: videos, opened: make(map[string]int)}
}

func (o *fakeOpener) Open(name string) (video.Capture, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.videos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", video.ErrOpen, name)
	}
	o.opened[name]++
	o.open++
	return &fakeCapture{opener: o, v: v}, nil
}

func (o *fakeOpener) stats(name string) (opened, open int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened[name], o.open
}

type fakeCapture struct {
	opener *fakeOpener
	v      fakeVideo
	read   int
	closed bool
}

func (c *fakeCapture) Size() (int, int) { return c.v.width, c.v.height }

func (c *fakeCapture) Read() (video.Image, error) {
	if c.read >= c.v.frames {
		return video.Image{}, io.EOF
	}
	c.read++
	return video.Image{
		Width:  c.v.width,
		Height: c.v.height,
		Data:   make([]byte, c.v.width*c.v.height*3),
	}, nil
}

func (c *fakeCapture) Close() error {
	if c.closed {
		return fmt.Errorf("double close")
	}
	c.closed = true
	c.opener.mu.Lock()
	c.opener.open--
	c.opener.mu.Unlock()
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	opened []string
}

func (n *recordingNotifier) SourceOpened(name string, w, h int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, fmt.Sprintf("%s:%dx%d", name, w, h))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{FPS: 1000, RetryDelay: 10 * time.Millisecond}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoopPublishesFrames(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {4, 3, 100}})
	store := settings.NewStore(settings.Default("a.mp4"), nil)
	slot := frameslot.New()

	loop := New(opener, store, slot, fastConfig(), testLogger(), nil)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer loop.Stop()

	waitFor(t, "first frame", func() bool { return slot.Load() != nil })

	f := slot.Load()
	if f.Source != "a.mp4" || f.Width != 4 || f.Height != 3 || len(f.Data) != 4*3*3 {
		t.Errorf("frame = %s %dx%d (%d bytes)", f.Source, f.Width, f.Height, len(f.Data))
	}
	if st := loop.Stats(); st.State != StateDecoding || st.Source != "a.mp4" {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLoopStartTwice(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {4, 3, 100}})
	loop := New(opener, settings.NewStore(settings.Default("a.mp4"), nil), frameslot.New(), fastConfig(), testLogger(), nil)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer loop.Stop()
	if err := loop.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestLoopReopensAtEndOfStream(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"short.mp4": {2, 2, 3}})
	store := settings.NewStore(settings.Default("short.mp4"), nil)

	loop := New(opener, store, frameslot.New(), fastConfig(), testLogger(), nil)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	waitFor(t, "three passes", func() bool {
		opened, _ := opener.stats("short.mp4")
		return opened >= 3
	})
	loop.Stop()

	st := loop.Stats()
	if st.Reopens < 2 {
		t.Errorf("Reopens = %d, want >= 2", st.Reopens)
	}
	if st.OpenFailures != 0 {
		t.Errorf("OpenFailures = %d, want 0", st.OpenFailures)
	}
	if _, open := opener.stats("short.mp4"); open != 0 {
		t.Errorf("%d handles still open after Stop", open)
	}
}

func TestLoopSwitchesSource(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{
		"a.mp4": {4, 3, 1 << 30},
		"b.mp4": {8, 6, 1 << 30},
	})
	store := settings.NewStore(settings.Default("a.mp4"), nil)
	slot := frameslot.New()
	notifier := &recordingNotifier{}

	loop := New(opener, store, slot, fastConfig(), testLogger(), notifier)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer loop.Stop()

	waitFor(t, "frame from a", func() bool {
		f := slot.Load()
		return f != nil && f.Source == "a.mp4"
	})

	next := store.Read()
	next.VideoSource = "b.mp4"
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	waitFor(t, "frame from b", func() bool {
		f := slot.Load()
		return f != nil && f.Source == "b.mp4"
	})

	f := slot.Load()
	if f.Width != 8 || f.Height != 6 {
		t.Errorf("frame from b = %dx%d, want 8x6", f.Width, f.Height)
	}
	if st := loop.Stats(); st.Width != 8 || st.Height != 6 || st.Switches != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	_, open := opener.stats("a.mp4")
	if open != 1 {
		t.Errorf("%d handles open, want only the handle for b", open)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.opened) != 2 || notifier.opened[0] != "a.mp4:4x3" || notifier.opened[1] != "b.mp4:8x6" {
		t.Errorf("notifier saw %v", notifier.opened)
	}
}

func TestLoopRetriesUntilSourceIsValid(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"good.mp4": {4, 3, 1 << 30}})
	store := settings.NewStore(settings.Default("broken.mp4"), nil)
	slot := frameslot.New()

	loop := New(opener, store, slot, fastConfig(), testLogger(), nil)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer loop.Stop()

	waitFor(t, "repeated open failures", func() bool { return loop.Stats().OpenFailures >= 3 })
	if slot.Load() != nil {
		t.Fatal("no frame should be published while the source is broken")
	}

	next := store.Read()
	next.VideoSource = "good.mp4"
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	waitFor(t, "frame from good source", func() bool {
		f := slot.Load()
		return f != nil && f.Source == "good.mp4"
	})
}

func TestLoopEmptySourceBacksOff(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"empty.mp4": {4, 3, 0}})
	store := settings.NewStore(settings.Default("empty.mp4"), nil)

	cfg := fastConfig()
	cfg.RetryDelay = 50 * time.Millisecond
	loop := New(opener, store, frameslot.New(), cfg, testLogger(), nil)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	loop.Stop()

	opened, open := opener.stats("empty.mp4")
	if opened > 4 {
		t.Errorf("empty source opened %d times in 120ms, backoff not applied", opened)
	}
	if open != 0 {
		t.Errorf("%d handles still open", open)
	}
	if loop.Stats().OpenFailures == 0 {
		t.Error("empty source should count as an open failure")
	}
}

func TestLoopStopReleasesHandle(t *testing.T) {
	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {4, 3, 1 << 30}})
	store := settings.NewStore(settings.Default("a.mp4"), nil)
	slot := frameslot.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := New(opener, store, slot, fastConfig(), testLogger(), nil)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "decoding", func() bool { return loop.Stats().State == StateDecoding })

	loop.Stop()
	loop.Stop()

	if st := loop.Stats().State; st != StateStopped {
		t.Errorf("State = %v, want stopped", st)
	}
	if _, open := opener.stats("a.mp4"); open != 0 {
		t.Errorf("%d handles still open after Stop", open)
	}
}

func TestStopWithoutStart(t *testing.T) {
	loop := New(newFakeOpener(nil), settings.NewStore(settings.Default("a.mp4"), nil), frameslot.New(), fastConfig(), testLogger(), nil)
	loop.Stop()
}

func TestConfigInterval(t *testing.T) {
	if got := (Config{FPS: 30}).Interval(); got != time.Second/30 {
		t.Errorf("Interval() = %v", got)
	}
	if got := (Config{}).Interval(); got != time.Second/30 {
		t.Errorf("Interval() with zero FPS = %v", got)
	}
}
