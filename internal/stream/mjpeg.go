package stream

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Boundary separates the parts of the MJPEG response.
const Boundary = "frame"

// ContentType is the response type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// MJPEGWriter writes each frame as one image/jpeg part.
type MJPEGWriter struct {
	mw      *multipart.Writer
	flusher http.Flusher
}

// NewMJPEGWriter wraps w. If w is an http.Flusher every part is flushed.
func NewMJPEGWriter(w io.Writer) *MJPEGWriter {
	mw := multipart.NewWriter(w)
	// SetBoundary only fails on invalid boundary strings.
	_ = mw.SetBoundary(Boundary)

	f, _ := w.(http.Flusher)
	return &MJPEGWriter{mw: mw, flusher: f}
}

func (m *MJPEGWriter) WriteFrame(data []byte) error {
	part, err := m.mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"image/jpeg"},
	})
	if err != nil {
		return fmt.Errorf("error starting part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("error writing part: %w", err)
	}
	if m.flusher != nil {
		m.flusher.Flush()
	}
	return nil
}

// ServeMJPEG streams frames to an HTTP client until it disconnects.
func (s *Streamer) ServeMJPEG(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	if err := s.Run(r.Context(), "mjpeg", r.RemoteAddr, NewMJPEGWriter(w)); err != nil {
		s.logger.Debug("mjpeg client write failed", "remote", r.RemoteAddr, "error", err)
	}
}
