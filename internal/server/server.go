// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlverezYari/warpframe/internal/settings"
	"github.com/AlverezYari/warpframe/internal/source"
	"github.com/AlverezYari/warpframe/internal/stream"
	"github.com/AlverezYari/warpframe/pkg/video"
)

// LoopStatus reports the decode loop's progress.
type LoopStatus interface {
	Stats() source.Stats
}

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	VideoDir       string
	AllowedOrigins []string
}

type Server struct {
	opts     Options
	store    *settings.Store
	streamer *stream.Streamer
	loop     LoopStatus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	isRunning bool
}

func New(opts Options, store *settings.Store, streamer *stream.Streamer, loop LoopStatus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:     opts,
		store:    store,
		streamer: streamer,
		loop:     loop,
		logger:   logger.With("component", "server"),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}
	return s
}

// Handler returns the routed HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("POST /settings", s.handlePostSettings)
	mux.HandleFunc("GET /video", s.streamer.ServeMJPEG)
	mux.HandleFunc("GET /ws/video", s.streamer.ServeWebSocket(&s.upgrader))
	mux.HandleFunc("GET /video-list", s.handleVideoList)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.cors(mux)
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", s.opts.Addr, err)
	}

	// Stream sessions run on request contexts derived from base; cancelling it
	// on shutdown ends them so Shutdown does not wait out the timeout.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	s.server = srv
	s.listener = ln

	go func() {
		s.logger.Info("starting server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.isRunning = true
	return nil
}

// Stop shuts the server down, ending active stream sessions.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("server is not running")
	}

	s.logger.Info("stopping server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.isRunning = false
	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
		s.logger.Error("server shutdown error", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Addr returns the bound address while running, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Read())
}

func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	next, err := settings.Decode(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		s.logger.Warn("rejected settings update", "remote", r.RemoteAddr, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	if err := s.store.Replace(next); err != nil {
		s.logger.Error("failed to apply settings", "error", err)
		http.Error(w, "failed to persist settings", http.StatusInternalServerError)
		return
	}

	s.logger.Info("settings updated", "source", next.VideoSource)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVideoList(w http.ResponseWriter, r *http.Request) {
	videos, err := video.List(s.opts.VideoDir)
	if err != nil {
		s.logger.Error("failed to list videos", "dir", s.opts.VideoDir, "error", err)
		http.Error(w, "failed to list videos", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"videos": videos})
}

type healthResponse struct {
	Status   string `json:"status"`
	State    string `json:"state"`
	Source   string `json:"source"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Frames   uint64 `json:"frames"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.loop.Stats()
	status := "ok"
	if st.State != source.StateDecoding {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		State:    st.State.String(),
		Source:   st.Source,
		Width:    st.Width,
		Height:   st.Height,
		Frames:   st.FramesRead,
		Sessions: s.streamer.Registry().Count(),
	})
}

func (s *Server) originAllowed(origin string) bool {
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin) || slices.Contains(s.opts.AllowedOrigins, "*")
}

// cors allows the configured origins with credentials, any method and any
// request header.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
