// Package frameslot holds the most recently decoded frame.
//
// One writer (the source loop) publishes, any number of stream sessions read.
// Publishing swaps a pointer to a freshly allocated Frame, so a reader always
// sees a frame that was completely written before it was published. Frames
// must not be modified after Publish.
package frameslot

import (
	"context"
	"sync/atomic"
	"time"
)

// Frame is one decoded raster plus the native size of the source it came from.
// Data is 8-bit BGR, row-major, Width*Height*3 bytes.
type Frame struct {
	Seq       uint64
	Source    string
	Width     int
	Height    int
	Data      []byte
	Timestamp time.Time
}

// Slot is a single-slot, latest-value-wins register.
type Slot struct {
	frame atomic.Pointer[Frame]
	seq   atomic.Uint64
}

func New() *Slot {
	return &Slot{}
}

// Publish makes f the current frame and stamps its sequence number.
// f is owned by the slot afterwards.
func (s *Slot) Publish(f *Frame) {
	f.Seq = s.seq.Add(1)
	s.frame.Store(f)
}

// Clear empties the slot. Readers see "no frame yet" until the next Publish.
func (s *Slot) Clear() {
	s.frame.Store(nil)
}

// Load returns the current frame, or nil if there is none.
func (s *Slot) Load() *Frame {
	return s.frame.Load()
}

// Published returns how many frames have been published so far.
func (s *Slot) Published() uint64 {
	return s.seq.Load()
}

// Wait polls the slot every interval until a frame is available or ctx ends.
func (s *Slot) Wait(ctx context.Context, interval time.Duration) (*Frame, error) {
	if f := s.Load(); f != nil {
		return f, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if f := s.Load(); f != nil {
				return f, nil
			}
		}
	}
}
