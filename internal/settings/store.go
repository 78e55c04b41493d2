package settings

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Persister writes a settings document to durable storage.
type Persister interface {
	Save(Settings) error
}

// Observer is called after a successful Replace with the previous and new values.
type Observer func(old, new Settings)

// Store holds the live Settings. Reads are lock-free snapshots; Replace is
// serialized so persistence and the swap happen in the same order.
type Store struct {
	current   atomic.Pointer[Settings]
	mu        sync.Mutex
	persister Persister
	changed   chan struct{}

	observersMu sync.RWMutex
	observers   []Observer
}

// NewStore returns a Store holding initial. persister may be nil, in which
// case replacements are kept in memory only.
func NewStore(initial Settings, persister Persister) *Store {
	s := &Store{
		persister: persister,
		changed:   make(chan struct{}, 1),
	}
	s.current.Store(&initial)
	return s
}

// Read returns the current settings snapshot.
func (s *Store) Read() Settings {
	return *s.current.Load()
}

// Replace persists next and then makes it the live configuration. If the video
// source differs from the previous one the source-changed signal is raised.
// On a persistence error nothing changes. Observers run after the store is
// unlocked, so a slow observer never holds up another Replace.
func (s *Store) Replace(next Settings) error {
	old, err := s.swap(next)
	if err != nil {
		return err
	}

	s.observersMu.RLock()
	observers := slices.Clone(s.observers)
	s.observersMu.RUnlock()
	for _, fn := range observers {
		fn(old, next)
	}
	return nil
}

func (s *Store) swap(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(next); err != nil {
			return Settings{}, fmt.Errorf("error persisting settings: %w", err)
		}
	}

	old := *s.current.Swap(&next)
	if old.VideoSource != next.VideoSource {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
	return old, nil
}

// SourceChanged delivers a value after a Replace switched the video source.
// Multiple switches before the receiver drains it collapse into one signal.
func (s *Store) SourceChanged() <-chan struct{} {
	return s.changed
}

// Observe registers fn to be called after every successful Replace.
func (s *Store) Observe(fn Observer) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}
