package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

// WebSocketSink sends each frame as one binary message.
type WebSocketSink struct {
	conn *websocket.Conn
}

func (ws *WebSocketSink) WriteFrame(data []byte) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("error setting write deadline: %w", err)
	}
	return ws.conn.WriteMessage(websocket.BinaryMessage, data)
}

// ServeWebSocket upgrades the request and streams frames as binary messages.
// The session ends when the client closes the connection.
func (s *Streamer) ServeWebSocket(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("error upgrading websocket connection", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Read pump: clients send nothing useful, but reading is how a
		// close frame or a dropped connection is noticed.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := s.Run(ctx, "websocket", r.RemoteAddr, &WebSocketSink{conn: conn}); err != nil {
			s.logger.Debug("websocket client write failed", "remote", r.RemoteAddr, "error", err)
		}
	}
}
